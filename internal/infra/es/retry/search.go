package retry

import (
	"context"
	"strings"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/metrics"
)

// OpSearch is the operation label of searches.
const OpSearch = "search"

// Searcher runs one search request.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q domain.Query) (*domain.SearchResponse, error)

func (f SearcherFunc) Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error) {
	return f(ctx, q)
}

// Search runs q and retries it unchanged while the only shard failures are
// overload rejections. Any other shard failure ends the chain.
func (e *Executor) Search(ctx context.Context, s Searcher, q domain.Query) (*domain.SearchResponse, error) {
	st := e.policy.NewState(e.now())

	for {
		resp, err := s.Search(ctx, q)
		if err != nil {
			c := Classify(err)
			if !c.Category.Retriable() {
				return nil, e.fail(OpSearch, st, c, err)
			}
			if err := e.backoff(ctx, OpSearch, st, c, err); err != nil {
				return nil, err
			}
			continue
		}

		if resp == nil || resp.Shards.Failed <= 0 {
			metrics.OperationsTotal.WithLabelValues(OpSearch, outcomeSuccess).Inc()
			return resp, nil
		}

		types := shardFailureTypes(resp.Shards.Failures)
		for _, t := range types {
			metrics.ShardFailuresTotal.WithLabelValues(t).Inc()
		}

		if len(types) != 1 || types[0] != domain.ErrTypeRejectedExecution {
			se := &ShardError{Types: types}
			metrics.OperationsTotal.WithLabelValues(OpSearch, outcomeFatal).Inc()
			e.log.Error("Not all shards returned successful, shard errors",
				"reasons", strings.Join(types, " | "),
				"failed", resp.Shards.Failed,
				"total", resp.Shards.Total,
				"chain", st.ID,
			)
			return nil, se
		}

		c := Classification{Category: RetriableOverload, Reason: types[0]}
		if err := e.backoff(ctx, OpSearch, st, c, &domain.ClusterError{Type: types[0]}); err != nil {
			return nil, err
		}
	}
}

// shardFailureTypes returns the distinct failure types in first-seen order.
func shardFailureTypes(failures []domain.ShardFailure) []string {
	seen := make(map[string]struct{}, len(failures))
	types := make([]string, 0, len(failures))
	for _, f := range failures {
		t := f.Reason.Type
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}
