package es

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es/retry"
	"github.com/vietddude/esguard/internal/infra/es/transport"
)

// fakeTransport answers from per-endpoint functions. Unset endpoints return zero values.
type fakeTransport struct {
	mu    sync.Mutex
	calls map[string]int

	search        func(q domain.Query) (*domain.SearchResponse, error)
	get           func(q domain.Query) (*domain.GetResponse, error)
	index         func(q domain.Query) (*domain.IndexResponse, error)
	create        func(q domain.Query) (*domain.IndexResponse, error)
	update        func(q domain.Query) (*domain.IndexResponse, error)
	del           func(q domain.Query) (*domain.DeleteResponse, error)
	bulk          func(body []any) (*domain.BulkResponse, error)
	indexExists   func(index string) (bool, error)
	putTemplate   func(name string, body any) (*domain.AckResponse, error)
	clusterStats  func() (*domain.ClusterStats, error)
	indexSettings func() (map[string]domain.IndexSettings, error)
}

func (f *fakeTransport) record(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	return f.calls[op]
}

func (f *fakeTransport) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTransport) Search(_ context.Context, q domain.Query) (*domain.SearchResponse, error) {
	f.record("search")
	if f.search == nil {
		return &domain.SearchResponse{}, nil
	}
	return f.search(q)
}

func (f *fakeTransport) Get(_ context.Context, q domain.Query) (*domain.GetResponse, error) {
	f.record("get")
	if f.get == nil {
		return &domain.GetResponse{}, nil
	}
	return f.get(q)
}

func (f *fakeTransport) Index(_ context.Context, q domain.Query) (*domain.IndexResponse, error) {
	f.record("index")
	if f.index == nil {
		return &domain.IndexResponse{Result: "created"}, nil
	}
	return f.index(q)
}

func (f *fakeTransport) Create(_ context.Context, q domain.Query) (*domain.IndexResponse, error) {
	f.record("create")
	if f.create == nil {
		return &domain.IndexResponse{Result: "created"}, nil
	}
	return f.create(q)
}

func (f *fakeTransport) Update(_ context.Context, q domain.Query) (*domain.IndexResponse, error) {
	f.record("update")
	if f.update == nil {
		return &domain.IndexResponse{Result: "updated"}, nil
	}
	return f.update(q)
}

func (f *fakeTransport) Delete(_ context.Context, q domain.Query) (*domain.DeleteResponse, error) {
	f.record("delete")
	if f.del == nil {
		return &domain.DeleteResponse{Result: "deleted"}, nil
	}
	return f.del(q)
}

func (f *fakeTransport) Bulk(_ context.Context, body []any) (*domain.BulkResponse, error) {
	f.record("bulk")
	if f.bulk == nil {
		return &domain.BulkResponse{}, nil
	}
	return f.bulk(body)
}

func (f *fakeTransport) IndexExists(_ context.Context, index string) (bool, error) {
	f.record("indexExists")
	if f.indexExists == nil {
		return true, nil
	}
	return f.indexExists(index)
}

func (f *fakeTransport) IndexCreate(context.Context, domain.Query) (*domain.AckResponse, error) {
	f.record("indexCreate")
	return &domain.AckResponse{Acknowledged: true}, nil
}

func (f *fakeTransport) IndexRefresh(context.Context, string) (json.RawMessage, error) {
	f.record("indexRefresh")
	return json.RawMessage(`{"_shards":{"total":2,"successful":2,"failed":0}}`), nil
}

func (f *fakeTransport) IndexRecovery(context.Context, string) (json.RawMessage, error) {
	f.record("indexRecovery")
	return json.RawMessage(`{}`), nil
}

func (f *fakeTransport) PutTemplate(_ context.Context, name string, body any) (*domain.AckResponse, error) {
	f.record("putTemplate")
	if f.putTemplate == nil {
		return &domain.AckResponse{Acknowledged: true}, nil
	}
	return f.putTemplate(name, body)
}

func (f *fakeTransport) ClusterStats(context.Context) (*domain.ClusterStats, error) {
	f.record("clusterStats")
	if f.clusterStats == nil {
		return &domain.ClusterStats{}, nil
	}
	return f.clusterStats()
}

func (f *fakeTransport) IndexSettings(context.Context) (map[string]domain.IndexSettings, error) {
	f.record("indexSettings")
	if f.indexSettings == nil {
		return map[string]domain.IndexSettings{}, nil
	}
	return f.indexSettings()
}

func (f *fakeTransport) NodesInfo(context.Context) (json.RawMessage, error) {
	f.record("nodesInfo")
	return json.RawMessage(`{"nodes":{}}`), nil
}

func (f *fakeTransport) NodesStats(context.Context) (json.RawMessage, error) {
	f.record("nodesStats")
	return json.RawMessage(`{"nodes":{}}`), nil
}

func (f *fakeTransport) Ping(context.Context) error {
	f.record("ping")
	return nil
}

func (f *fakeTransport) Health() transport.Health {
	return transport.Health{Available: true}
}

func (f *fakeTransport) Close() error { return nil }

var _ transport.Transport = (*fakeTransport)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a client whose backoff waits are recorded instead of slept.
func newTestClient(ft *fakeTransport, opts ...ClientOption) (*Client, *[]time.Duration) {
	var mu sync.Mutex
	var delays []time.Duration
	exec := retry.NewExecutor(retry.DefaultPolicy,
		retry.WithLogger(discardLogger()),
		retry.WithSleep(func(_ context.Context, d time.Duration) error {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
			return nil
		}),
	)
	opts = append([]ClientOption{WithLogger(discardLogger())}, opts...)
	return NewClient(ft, exec, opts...), &delays
}
