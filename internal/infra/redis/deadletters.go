package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

// DeadLetterRepo implements storage.DeadLetterRepository using a Redis
// sorted set of ids plus one JSON value per document.
type DeadLetterRepo struct {
	client *Client
	// ttl expires document values; 0 keeps them until resolved.
	ttl time.Duration
}

// NewDeadLetterRepo creates a new Redis-backed dead letter repository.
func NewDeadLetterRepo(client *Client, ttl time.Duration) *DeadLetterRepo {
	return &DeadLetterRepo{client: client, ttl: ttl}
}

func (r *DeadLetterRepo) queueKey() string {
	return r.client.key("dead_letters")
}

func (r *DeadLetterRepo) docKey(id string) string {
	return r.client.key("dead_letter", id)
}

// queueScore orders by retry count, then age. Unix seconds stay below 1e10,
// so the sum is exact in a float64 for any realistic retry count.
func queueScore(doc *domain.FailedDocument) float64 {
	return float64(doc.RetryCount)*1e10 + float64(doc.CreatedAt)
}

func (r *DeadLetterRepo) save(ctx context.Context, doc *domain.FailedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	_, err = r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(doc.ID), data, r.ttl)
		pipe.ZAdd(ctx, r.queueKey(), redis.Z{Score: queueScore(doc), Member: doc.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) load(ctx context.Context, id string) (*domain.FailedDocument, error) {
	data, err := r.client.rdb.Get(ctx, r.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}

	var doc domain.FailedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
	}
	return &doc, nil
}

// Add parks a failed document.
func (r *DeadLetterRepo) Add(ctx context.Context, doc *domain.FailedDocument) error {
	cp := *doc
	if cp.Status == "" {
		cp.Status = domain.FailedDocStatusPending
	}
	if cp.CreatedAt == 0 {
		cp.CreatedAt = time.Now().Unix()
	}
	return r.save(ctx, &cp)
}

// GetPending returns up to limit pending documents. A limit <= 0 returns all.
func (r *DeadLetterRepo) GetPending(ctx context.Context, limit int) ([]*domain.FailedDocument, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	return r.rangeDocs(ctx, stop)
}

// IncrementRetry increments retry count and records the latest failure.
func (r *DeadLetterRepo) IncrementRetry(ctx context.Context, id string, reason string) error {
	doc, err := r.load(ctx, id)
	if err != nil {
		return err
	}

	doc.RetryCount++
	doc.LastAttempt = time.Now().Unix()
	doc.Error = reason
	return r.save(ctx, doc)
}

// MarkResolved removes a replayed document.
func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id string) error {
	_, err := r.Discard(ctx, id)
	return err
}

// GetAll retrieves all pending documents.
func (r *DeadLetterRepo) GetAll(ctx context.Context) ([]*domain.FailedDocument, error) {
	return r.rangeDocs(ctx, -1)
}

func (r *DeadLetterRepo) rangeDocs(ctx context.Context, stop int64) ([]*domain.FailedDocument, error) {
	ids, err := r.client.rdb.ZRange(ctx, r.queueKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	docs := make([]*domain.FailedDocument, 0, len(ids))
	for _, id := range ids {
		doc, err := r.load(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// Value expired but id still queued
			r.client.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of queued documents.
func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	count, err := r.client.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// Discard removes documents from the queue and deletes their values.
func (r *DeadLetterRepo) Discard(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]any, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id
		keys[i] = r.docKey(id)
	}

	var removed *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, r.queueKey(), members...)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to discard dead letters: %w", err)
	}
	return int(removed.Val()), nil
}
