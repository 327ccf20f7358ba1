package es

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es/retry"
	"github.com/vietddude/esguard/internal/infra/storage"
	"github.com/vietddude/esguard/internal/metrics"
)

// DeadLetterStore receives documents of bulk writes that failed for good.
type DeadLetterStore interface {
	Add(ctx context.Context, doc *domain.FailedDocument) error
}

// ReplayReport summarizes one dead-letter replay pass.
type ReplayReport struct {
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}

func (c *Client) captureDeadLetters(ctx context.Context, be *retry.BulkError) error {
	batchID := uuid.NewString()
	now := time.Now().Unix()

	var errs []error
	parked := 0
	for _, lines := range retry.Documents(be.Unfinished) {
		doc, err := newFailedDocument(batchID, lines, be.Reason, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.deadLetter.Add(ctx, doc); err != nil {
			errs = append(errs, fmt.Errorf("add %s: %w", doc.ID, err))
			continue
		}
		parked++
	}

	metrics.DeadLetteredDocs.Add(float64(parked))
	c.log.Warn("Dead-lettered bulk documents", "batch", batchID, "documents", parked, "reason", be.Reason)
	return errors.Join(errs...)
}

func newFailedDocument(batchID string, lines []any, reason string, now int64) (*domain.FailedDocument, error) {
	doc := &domain.FailedDocument{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Error:     reason,
		Status:    domain.FailedDocStatusPending,
		CreatedAt: now,
	}

	var err error
	if doc.Action, err = rawLine(lines[0]); err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	if len(lines) > 1 {
		if doc.Payload, err = rawLine(lines[1]); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}
	return doc, nil
}

func rawLine(line any) (json.RawMessage, error) {
	switch v := line.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	case string:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}

// ReplayDeadLetters resubmits up to limit pending documents one at a time.
// Documents that fail again stay parked with their retry count raised.
func (c *Client) ReplayDeadLetters(ctx context.Context, repo storage.DeadLetterRepository, limit int) (ReplayReport, error) {
	var report ReplayReport

	docs, err := repo.GetPending(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("load dead letters: %w", err)
	}

	for _, doc := range docs {
		report.Attempted++

		_, err := c.exec.Bulk(ctx, c.transport, doc.Body())
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			c.log.Warn("Dead letter replay failed", "id", doc.ID, "retries", doc.RetryCount+1, "error", err)
			if ierr := repo.IncrementRetry(ctx, doc.ID, err.Error()); ierr != nil {
				return report, fmt.Errorf("increment retry %s: %w", doc.ID, ierr)
			}
			continue
		}

		if err := repo.MarkResolved(ctx, doc.ID); err != nil {
			return report, fmt.Errorf("mark resolved %s: %w", doc.ID, err)
		}
		report.Resolved++
	}

	c.log.Info("Dead letter replay finished", "attempted", report.Attempted, "resolved", report.Resolved, "failed", report.Failed)
	return report, nil
}
