package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

var _ storage.DeadLetterRepository = (*DeadLetterRepo)(nil)

func TestDeadLetterRow_ToDomain(t *testing.T) {
	row := deadLetterRow{
		ID:        "a",
		BatchID:   "b",
		Action:    []byte(`{"delete":{"_index":"logs","_id":"1"}}`),
		ErrorMsg:  "x--y",
		Status:    "pending",
		CreatedAt: 10,
	}

	doc := row.toDomain()

	assert.Nil(t, doc.Payload)
	assert.Equal(t, []any{json.RawMessage(row.Action)}, doc.Body())
	assert.Equal(t, domain.FailedDocStatusPending, doc.Status)
}

// newLiveRepo connects to ESGUARD_TEST_DATABASE_URL and migrates it.
func newLiveRepo(t *testing.T) *DeadLetterRepo {
	t.Helper()
	url := os.Getenv("ESGUARD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping live PostgreSQL test. Set ESGUARD_TEST_DATABASE_URL to run.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, Config{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE dead_letters`)
	require.NoError(t, err)

	return NewDeadLetterRepo(db)
}

func TestDeadLetterRepo_Live(t *testing.T) {
	repo := newLiveRepo(t)
	ctx := context.Background()
	batch := uuid.NewString()

	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	for i, id := range ids {
		require.NoError(t, repo.Add(ctx, &domain.FailedDocument{
			ID:        id,
			BatchID:   batch,
			Action:    json.RawMessage(`{"index":{"_index":"logs"}}`),
			Payload:   json.RawMessage(`{"n":1}`),
			Error:     "mapper_parsing_exception--bad",
			CreatedAt: int64(100 + i),
		}))
	}

	require.NoError(t, repo.IncrementRetry(ctx, ids[0], "still bad"))
	assert.ErrorIs(t, repo.IncrementRetry(ctx, uuid.NewString(), "x"), storage.ErrNotFound)

	pending, err := repo.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].ID)
	assert.JSONEq(t, `{"n":1}`, string(pending[0].Payload))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[0], all[2].ID)
	assert.Equal(t, "still bad", all[2].Error)
	assert.Equal(t, 1, all[2].RetryCount)

	require.NoError(t, repo.MarkResolved(ctx, ids[1]))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dropped, err := repo.Discard(ctx, ids[0], ids[2])
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
