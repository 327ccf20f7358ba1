package retry

import (
	"context"
	"encoding/json"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/metrics"
)

// OpBulk is the operation label of bulk writes.
const OpBulk = "bulk"

const bulkOverloadWarning = "The elasticsearch cluster queues are overloaded, resubmitting failed queries from bulk"

// BulkSender sends one bulk request. body alternates action and source lines.
type BulkSender interface {
	Bulk(ctx context.Context, body []any) (*domain.BulkResponse, error)
}

// BulkSenderFunc adapts a function to BulkSender.
type BulkSenderFunc func(ctx context.Context, body []any) (*domain.BulkResponse, error)

func (f BulkSenderFunc) Bulk(ctx context.Context, body []any) (*domain.BulkResponse, error) {
	return f(ctx, body)
}

// Bulk sends body and resubmits only the documents the cluster rejected for
// overload, until every document is committed or ignorable. The response of
// the last attempt is returned.
func (e *Executor) Bulk(ctx context.Context, sender BulkSender, body []any) (*domain.BulkResponse, error) {
	st := e.policy.NewState(e.now())
	pending := body

	for {
		resp, err := sender.Bulk(ctx, pending)
		if err != nil {
			c := Classify(err)
			if !c.Category.Retriable() {
				be := &BulkError{Reason: "bulk sender error: " + c.Reason, Unfinished: pending, Err: err}
				metrics.OperationsTotal.WithLabelValues(OpBulk, outcomeFatal).Inc()
				e.log.Error(be.Reason, "chain", st.ID, "attempts", st.Attempts, "lines", len(pending))
				return nil, be
			}
			if err := e.backoff(ctx, OpBulk, st, c, err); err != nil {
				return nil, err
			}
			continue
		}

		if resp == nil || !resp.Errors {
			metrics.OperationsTotal.WithLabelValues(OpBulk, outcomeSuccess).Inc()
			return resp, nil
		}

		plan := planResubmit(pending, resp)
		if plan.fatal != "" {
			be := &BulkError{Reason: plan.fatal, Unfinished: plan.unfinished}
			metrics.OperationsTotal.WithLabelValues(OpBulk, outcomeFatal).Inc()
			e.log.Error("Bulk write failed", "chain", st.ID, "reason", plan.fatal, "unfinished_lines", len(plan.unfinished))
			return nil, be
		}
		if len(plan.retry) == 0 {
			metrics.OperationsTotal.WithLabelValues(OpBulk, outcomeSuccess).Inc()
			return resp, nil
		}

		e.throttle.Do(func() {
			e.log.Warn(bulkOverloadWarning, "documents", plan.rejected)
		})
		metrics.BulkResubmittedDocs.Add(float64(plan.rejected))

		c := Classification{Category: RetriableOverload, Reason: domain.ErrTypeRejectedExecution}
		if err := e.backoff(ctx, OpBulk, st, c, &domain.ClusterError{Type: domain.ErrTypeRejectedExecution}); err != nil {
			return nil, err
		}
		pending = plan.retry
	}
}

// resubmitPlan is the outcome of scanning one bulk response.
type resubmitPlan struct {
	// retry is the bulk body made of the rejected documents, in original order.
	retry    []any
	rejected int
	// fatal is "type--reason" of the first non-retriable item, if any.
	fatal string
	// unfinished holds the lines of every item that is neither committed nor ignorable.
	unfinished []any
}

func planResubmit(body []any, resp *domain.BulkResponse) resubmitPlan {
	var plan resubmitPlan
	spans := bulkSpans(body)

	for i, item := range resp.Items {
		res := item.Result()
		if res.Error == nil {
			continue
		}
		if i >= len(spans) {
			break
		}
		lines := body[spans[i].start:spans[i].end]

		c := ClassifyItem(res)
		switch c.Category {
		case IgnorableConflict:
			continue
		case RetriableOverload:
			plan.retry = append(plan.retry, lines...)
			plan.rejected++
		default:
			if plan.fatal == "" {
				plan.fatal = c.Reason
			}
		}
		plan.unfinished = append(plan.unfinished, lines...)
	}

	return plan
}

// Documents splits a bulk body into the lines of each logical document.
func Documents(body []any) [][]any {
	spans := bulkSpans(body)
	docs := make([][]any, 0, len(spans))
	for _, sp := range spans {
		docs = append(docs, body[sp.start:sp.end])
	}
	return docs
}

type span struct {
	start, end int
}

// bulkSpans locates each logical document of a bulk body. A delete action
// has no source line and occupies a single slot; every other action is
// followed by its source.
func bulkSpans(body []any) []span {
	spans := make([]span, 0, len(body)/2+1)
	for i := 0; i < len(body); {
		n := 2
		if isDeleteAction(body[i]) {
			n = 1
		}
		end := min(i+n, len(body))
		spans = append(spans, span{start: i, end: end})
		i = end
	}
	return spans
}

func isDeleteAction(line any) bool {
	var keys map[string]json.RawMessage
	switch v := line.(type) {
	case map[string]any:
		_, ok := v["delete"]
		return ok && len(v) == 1
	case map[string]map[string]any:
		_, ok := v["delete"]
		return ok && len(v) == 1
	case json.RawMessage:
		if json.Unmarshal(v, &keys) != nil {
			return false
		}
	case []byte:
		if json.Unmarshal(v, &keys) != nil {
			return false
		}
	case string:
		if json.Unmarshal([]byte(v), &keys) != nil {
			return false
		}
	default:
		return false
	}
	_, ok := keys["delete"]
	return ok && len(keys) == 1
}
