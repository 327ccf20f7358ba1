package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

// DeadLetterRepo keeps failed documents in process memory.
type DeadLetterRepo struct {
	mu   sync.RWMutex
	docs map[string]*domain.FailedDocument
}

func NewDeadLetterRepo() *DeadLetterRepo {
	return &DeadLetterRepo{docs: make(map[string]*domain.FailedDocument)}
}

func (r *DeadLetterRepo) Add(ctx context.Context, doc *domain.FailedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *DeadLetterRepo) GetPending(ctx context.Context, limit int) ([]*domain.FailedDocument, error) {
	all, _ := r.GetAll(ctx)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *DeadLetterRepo) IncrementRetry(ctx context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return storage.ErrNotFound
	}
	doc.RetryCount++
	doc.LastAttempt = time.Now().Unix()
	doc.Error = reason
	return nil
}

func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

// GetAll returns pending documents ordered by retry count, then age.
func (r *DeadLetterRepo) GetAll(ctx context.Context) ([]*domain.FailedDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.FailedDocument, 0, len(r.docs))
	for _, d := range r.docs {
		cp := *d
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.FailedDocument) int {
		return cmp.Or(
			cmp.Compare(a.RetryCount, b.RetryCount),
			cmp.Compare(a.CreatedAt, b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs), nil
}

func (r *DeadLetterRepo) Discard(ctx context.Context, ids ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.docs[id]; ok {
			delete(r.docs, id)
			n++
		}
	}
	return n, nil
}
