// Package transport talks to the cluster over HTTP.
//
// This package contains:
//   - Transport interface: one method per cluster endpoint the client uses
//   - Elastic: Transport backed by olivere/elastic PerformRequest
//   - SigV4RoundTripper: request signing for AWS managed domains
//   - Stats: success/failure tracking exposed on the health endpoint
//
// Transports never retry. Failures are reported as *domain.ClusterError when
// the cluster answered with a structured error, or wrap
// domain.ErrNoLivingConnections when no node could be reached.
package transport

import (
	"context"
	"encoding/json"

	"github.com/vietddude/esguard/internal/core/domain"
)

// Transport is the raw cluster API the retry engines sit on.
type Transport interface {
	Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error)
	Get(ctx context.Context, q domain.Query) (*domain.GetResponse, error)
	Index(ctx context.Context, q domain.Query) (*domain.IndexResponse, error)
	Create(ctx context.Context, q domain.Query) (*domain.IndexResponse, error)
	Update(ctx context.Context, q domain.Query) (*domain.IndexResponse, error)
	Delete(ctx context.Context, q domain.Query) (*domain.DeleteResponse, error)
	Bulk(ctx context.Context, body []any) (*domain.BulkResponse, error)

	IndexExists(ctx context.Context, index string) (bool, error)
	IndexCreate(ctx context.Context, q domain.Query) (*domain.AckResponse, error)
	IndexRefresh(ctx context.Context, index string) (json.RawMessage, error)
	IndexRecovery(ctx context.Context, index string) (json.RawMessage, error)
	PutTemplate(ctx context.Context, name string, body any) (*domain.AckResponse, error)

	ClusterStats(ctx context.Context) (*domain.ClusterStats, error)
	IndexSettings(ctx context.Context) (map[string]domain.IndexSettings, error)
	NodesInfo(ctx context.Context) (json.RawMessage, error)
	NodesStats(ctx context.Context) (json.RawMessage, error)
	Ping(ctx context.Context) error

	// Health returns request statistics of this transport.
	Health() Health

	Close() error
}
