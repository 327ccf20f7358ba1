package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

var _ storage.DeadLetterRepository = (*DeadLetterRepo)(nil)

func TestQueueScore(t *testing.T) {
	fresh := &domain.FailedDocument{CreatedAt: 1_900_000_000}
	older := &domain.FailedDocument{CreatedAt: 1_700_000_000}
	retried := &domain.FailedDocument{CreatedAt: 1_600_000_000, RetryCount: 1}

	assert.Less(t, queueScore(older), queueScore(fresh))
	assert.Less(t, queueScore(fresh), queueScore(retried))
}

func TestClientKey(t *testing.T) {
	c := &Client{prefix: "esguard-test"}
	r := NewDeadLetterRepo(c, 0)

	assert.Equal(t, "esguard-test:dead_letters", r.queueKey())
	assert.Equal(t, "esguard-test:dead_letter:abc", r.docKey("abc"))
}

func TestDeadLetterRepo_Live(t *testing.T) {
	url := os.Getenv("ESGUARD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping live Redis test. Set ESGUARD_TEST_REDIS_URL to run.")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{URL: url, Prefix: "esguard-test-" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := NewDeadLetterRepo(client, 0)
	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		require.NoError(t, repo.Add(ctx, &domain.FailedDocument{
			ID:        id,
			Action:    json.RawMessage(`{"index":{}}`),
			Payload:   json.RawMessage(`{"n":1}`),
			CreatedAt: int64(1_700_000_000 + i),
		}))
	}

	require.NoError(t, repo.IncrementRetry(ctx, "a", "still bad"))
	assert.ErrorIs(t, repo.IncrementRetry(ctx, "missing", "x"), storage.ErrNotFound)

	pending, err := repo.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, domain.FailedDocStatusPending, pending[0].Status)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[2].ID)
	assert.Equal(t, 1, all[2].RetryCount)

	require.NoError(t, repo.MarkResolved(ctx, "b"))
	dropped, err := repo.Discard(ctx, "a", "nope")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
