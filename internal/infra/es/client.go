// Package es is a resilient client for Elasticsearch-compatible clusters.
//
// Calls are classified and retried through the retry package:
//   - single-document and index-management calls use retry.Run
//   - BulkSend resubmits only the documents rejected for overload
//   - Search, SearchResponse and Count retry uniform overload shard failures
//
// # Quick Start
//
//	tr, _ := transport.NewElastic(transport.Options{URLs: []string{"http://localhost:9200"}})
//	exec := retry.NewExecutor(retry.DefaultPolicy, retry.WithThrottle(retry.NewWarnThrottle(0)))
//	client := es.NewClient(tr, exec, es.WithReader(es.ReaderConfig{Index: "logs-*"}))
//
//	doc, err := client.Get(ctx, domain.Query{Index: "logs", ID: "42"})
//
// Every method blocks until it settles; wrap a call in es.Go for a future.
package es

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es/retry"
	"github.com/vietddude/esguard/internal/infra/es/transport"
)

// Client is the resilient cluster API application code should use.
// Every call owns its retry chain; the Client itself is safe for concurrent use.
type Client struct {
	transport  transport.Transport
	exec       *retry.Executor
	reader     ReaderConfig
	deadLetter DeadLetterStore
	log        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReader sets the reader index used by BuildQuery and Version.
func WithReader(cfg ReaderConfig) ClientOption {
	return func(c *Client) { c.reader = cfg }
}

// WithDeadLetter parks documents of fatally failed bulk writes in store.
func WithDeadLetter(store DeadLetterStore) ClientOption {
	return func(c *Client) { c.deadLetter = store }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client over t. A nil executor uses retry.DefaultPolicy.
func NewClient(t transport.Transport, exec *retry.Executor, opts ...ClientOption) *Client {
	c := &Client{
		transport: t,
		exec:      exec,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = retry.NewExecutor(retry.DefaultPolicy, retry.WithLogger(c.log))
	}
	return c
}

// Transport returns the underlying transport.
func (c *Client) Transport() transport.Transport {
	return c.transport
}

// Count returns the number of documents matching q. Size is forced to 0.
func (c *Client) Count(ctx context.Context, q domain.Query) (int64, error) {
	resp, err := c.exec.Search(ctx, c.transport, q.WithSize(0))
	if err != nil || resp == nil {
		return 0, err
	}
	return resp.Hits.Total.Value, nil
}

// Search returns the _source of every hit.
func (c *Client) Search(ctx context.Context, q domain.Query) ([]json.RawMessage, error) {
	resp, err := c.exec.Search(ctx, c.transport, q)
	if err != nil {
		return nil, err
	}
	return resp.Sources(), nil
}

// SearchResponse returns the whole search response.
func (c *Client) SearchResponse(ctx context.Context, q domain.Query) (*domain.SearchResponse, error) {
	return c.exec.Search(ctx, c.transport, q)
}

// Get returns the _source of one document.
func (c *Client) Get(ctx context.Context, q domain.Query) (json.RawMessage, error) {
	resp, err := retry.Run(ctx, c.exec, OpGet, func(ctx context.Context) (*domain.GetResponse, error) {
		return c.transport.Get(ctx, q)
	})
	if err != nil || resp == nil {
		return nil, err
	}
	return resp.Source, nil
}

// Index writes a document and returns the cluster acknowledgement.
func (c *Client) Index(ctx context.Context, q domain.Query) (*domain.IndexResponse, error) {
	return retry.Run(ctx, c.exec, OpIndex, func(ctx context.Context) (*domain.IndexResponse, error) {
		return c.transport.Index(ctx, q)
	})
}

// IndexWithID writes a document under q.ID and returns the written body.
func (c *Client) IndexWithID(ctx context.Context, q domain.Query) (any, error) {
	_, err := retry.Run(ctx, c.exec, OpIndexWithID, func(ctx context.Context) (*domain.IndexResponse, error) {
		return c.transport.Index(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q.Body, nil
}

// Create writes a document only if its id is unused and returns the body.
// A document that already exists counts as created.
func (c *Client) Create(ctx context.Context, q domain.Query) (any, error) {
	_, err := retry.Run(ctx, c.exec, OpCreate, func(ctx context.Context) (*domain.IndexResponse, error) {
		resp, err := c.transport.Create(ctx, q)
		if isAlreadyExists(err) {
			c.log.Debug("Document already exists", "index", q.Index, "id", q.ID)
			return resp, nil
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return q.Body, nil
}

// Update applies a partial update and returns the applied doc fragment.
func (c *Client) Update(ctx context.Context, q domain.Query) (any, error) {
	_, err := retry.Run(ctx, c.exec, OpUpdate, func(ctx context.Context) (*domain.IndexResponse, error) {
		return c.transport.Update(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return q.UpdateDoc(), nil
}

// Remove deletes a document and reports whether it existed.
func (c *Client) Remove(ctx context.Context, q domain.Query) (bool, error) {
	resp, err := retry.Run(ctx, c.exec, OpRemove, func(ctx context.Context) (*domain.DeleteResponse, error) {
		return c.transport.Delete(ctx, q)
	})
	if err != nil {
		return false, err
	}
	return resp.WasFound(), nil
}

// IndexExists reports whether the index exists.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	return retry.Run(ctx, c.exec, OpIndexExists, func(ctx context.Context) (bool, error) {
		return c.transport.IndexExists(ctx, index)
	})
}

// IndexCreate creates q.Index with q.Body as settings and mappings.
func (c *Client) IndexCreate(ctx context.Context, q domain.Query) (*domain.AckResponse, error) {
	return retry.Run(ctx, c.exec, OpIndexCreate, func(ctx context.Context) (*domain.AckResponse, error) {
		return c.transport.IndexCreate(ctx, q)
	})
}

// IndexRefresh refreshes the index, or every index when index is empty.
func (c *Client) IndexRefresh(ctx context.Context, index string) (json.RawMessage, error) {
	return retry.Run(ctx, c.exec, OpIndexRefresh, func(ctx context.Context) (json.RawMessage, error) {
		return c.transport.IndexRefresh(ctx, index)
	})
}

// IndexRecovery returns shard recovery status of the index.
func (c *Client) IndexRecovery(ctx context.Context, index string) (json.RawMessage, error) {
	return retry.Run(ctx, c.exec, OpIndexRecovery, func(ctx context.Context) (json.RawMessage, error) {
		return c.transport.IndexRecovery(ctx, index)
	})
}

// PutTemplate installs an index template. It is not retried.
func (c *Client) PutTemplate(ctx context.Context, template any, name string) (*domain.AckResponse, error) {
	resp, err := c.transport.PutTemplate(ctx, name, template)
	if err != nil {
		return nil, &retry.FatalError{Op: OpPutTemplate, Reason: retry.Reason(err), Err: err}
	}
	return resp, nil
}

// BulkSend writes a bulk body, resubmitting documents rejected for overload.
// When the write fails for good, the unfinished documents are dead-lettered
// if a store is configured.
func (c *Client) BulkSend(ctx context.Context, body []any) (*domain.BulkResponse, error) {
	resp, err := c.exec.Bulk(ctx, c.transport, body)
	if err == nil {
		return resp, nil
	}

	var be *retry.BulkError
	if c.deadLetter != nil && errors.As(err, &be) && len(be.Unfinished) > 0 {
		if derr := c.captureDeadLetters(ctx, be); derr != nil {
			c.log.Error("Failed to dead-letter bulk documents", "error", derr, "reason", be.Reason)
		}
	}
	return nil, err
}

// NodeInfo returns the raw nodes info response.
func (c *Client) NodeInfo(ctx context.Context) (json.RawMessage, error) {
	return c.transport.NodesInfo(ctx)
}

// NodeStats returns the raw nodes stats response.
func (c *Client) NodeStats(ctx context.Context) (json.RawMessage, error) {
	return c.transport.NodesStats(ctx)
}

// Ping checks that a cluster node answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func isAlreadyExists(err error) bool {
	var ce *domain.ClusterError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Status == http.StatusConflict || ce.Type == domain.ErrTypeDocumentExists
}
