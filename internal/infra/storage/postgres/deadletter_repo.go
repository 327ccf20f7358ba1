package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

// DeadLetterRepo implements storage.DeadLetterRepository using PostgreSQL.
type DeadLetterRepo struct {
	db *DB
}

// NewDeadLetterRepo creates a new PostgreSQL dead letter repository.
func NewDeadLetterRepo(db *DB) *DeadLetterRepo {
	return &DeadLetterRepo{db: db}
}

type deadLetterRow struct {
	ID          string `db:"id"`
	BatchID     string `db:"batch_id"`
	Action      []byte `db:"action"`
	Payload     []byte `db:"payload"`
	ErrorMsg    string `db:"error_msg"`
	RetryCount  int    `db:"retry_count"`
	Status      string `db:"status"`
	LastAttempt int64  `db:"last_attempt"`
	CreatedAt   int64  `db:"created_at"`
}

func (r deadLetterRow) toDomain() *domain.FailedDocument {
	doc := &domain.FailedDocument{
		ID:          r.ID,
		BatchID:     r.BatchID,
		Action:      json.RawMessage(r.Action),
		Error:       r.ErrorMsg,
		RetryCount:  r.RetryCount,
		Status:      domain.FailedDocStatus(r.Status),
		LastAttempt: r.LastAttempt,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.Payload) > 0 {
		doc.Payload = json.RawMessage(r.Payload)
	}
	return doc
}

const selectDeadLetters = `
	SELECT id, batch_id, action::text AS action, payload::text AS payload, error_msg,
	       retry_count, status, last_attempt, created_at
	FROM dead_letters
	WHERE status = 'pending'
	ORDER BY retry_count ASC, created_at ASC, id ASC
`

// Add parks a failed document. Re-adding an id overwrites it.
func (r *DeadLetterRepo) Add(ctx context.Context, doc *domain.FailedDocument) error {
	query := `
		INSERT INTO dead_letters (id, batch_id, action, payload, error_msg, retry_count, status, last_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			action = EXCLUDED.action,
			payload = EXCLUDED.payload,
			error_msg = EXCLUDED.error_msg,
			status = EXCLUDED.status
	`
	status := doc.Status
	if status == "" {
		status = domain.FailedDocStatusPending
	}
	createdAt := doc.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	var payload any
	if len(doc.Payload) > 0 {
		payload = string(doc.Payload)
	}

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.BatchID,
		string(doc.Action),
		payload,
		doc.Error,
		doc.RetryCount,
		string(status),
		doc.LastAttempt,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add dead letter: %w", err)
	}
	return nil
}

// GetPending returns up to limit pending documents. A limit <= 0 returns all.
func (r *DeadLetterRepo) GetPending(ctx context.Context, limit int) ([]*domain.FailedDocument, error) {
	if limit <= 0 {
		return r.GetAll(ctx)
	}

	var rows []deadLetterRow
	if err := r.db.SelectContext(ctx, &rows, selectDeadLetters+" LIMIT $1", limit); err != nil {
		return nil, fmt.Errorf("failed to get pending dead letters: %w", err)
	}
	return toDomain(rows), nil
}

// IncrementRetry increments retry count and records the latest failure.
func (r *DeadLetterRepo) IncrementRetry(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE dead_letters
		SET retry_count = retry_count + 1, last_attempt = $2, error_msg = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().Unix(), reason)
	if err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkResolved marks a dead letter as resolved.
func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id string) error {
	query := `
		UPDATE dead_letters
		SET status = 'resolved', last_attempt = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, time.Now().Unix())
	return err
}

// GetAll returns all pending dead letters.
func (r *DeadLetterRepo) GetAll(ctx context.Context) ([]*domain.FailedDocument, error) {
	var rows []deadLetterRow
	if err := r.db.SelectContext(ctx, &rows, selectDeadLetters); err != nil {
		return nil, fmt.Errorf("failed to get all dead letters: %w", err)
	}
	return toDomain(rows), nil
}

// Count returns the number of pending dead letters.
func (r *DeadLetterRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM dead_letters WHERE status = 'pending'`)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// Discard deletes the given dead letters.
func (r *DeadLetterRepo) Discard(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to discard dead letters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func toDomain(rows []deadLetterRow) []*domain.FailedDocument {
	docs := make([]*domain.FailedDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDomain())
	}
	return docs
}
