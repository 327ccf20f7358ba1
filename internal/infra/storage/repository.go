package storage

import (
	"context"
	"errors"

	"github.com/vietddude/esguard/internal/core/domain"
)

var (
	// ErrNotFound is returned when a dead-lettered document doesn't exist
	ErrNotFound = errors.New("failed document not found")
)

// DeadLetterRepository parks bulk documents the cluster rejected for good
type DeadLetterRepository interface {
	// Add parks a failed document
	Add(ctx context.Context, doc *domain.FailedDocument) error

	// GetPending returns up to limit pending documents, fewest retries first
	GetPending(ctx context.Context, limit int) ([]*domain.FailedDocument, error)

	// IncrementRetry records a failed replay attempt
	IncrementRetry(ctx context.Context, id string, reason string) error

	// MarkResolved removes a document that was replayed successfully
	MarkResolved(ctx context.Context, id string) error

	// GetAll retrieves all pending documents
	GetAll(ctx context.Context) ([]*domain.FailedDocument, error)

	// Count returns the number of pending documents
	Count(ctx context.Context) (int, error)

	// Discard drops documents without replaying them and returns how many existed
	Discard(ctx context.Context, ids ...string) (int, error)
}
