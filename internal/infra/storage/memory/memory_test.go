package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/storage"
)

var _ storage.DeadLetterRepository = (*DeadLetterRepo)(nil)

func TestDeadLetterRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewDeadLetterRepo()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Add(ctx, &domain.FailedDocument{
			ID:        id,
			Action:    json.RawMessage(`{"index":{}}`),
			Status:    domain.FailedDocStatusPending,
			CreatedAt: int64(100 + i),
		}))
	}

	require.NoError(t, repo.IncrementRetry(ctx, "a", "mapper_parsing_exception--bad"))
	assert.ErrorIs(t, repo.IncrementRetry(ctx, "missing", "x"), storage.ErrNotFound)

	pending, err := repo.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[2].ID)
	assert.Equal(t, 1, all[2].RetryCount)
	assert.Equal(t, "mapper_parsing_exception--bad", all[2].Error)

	require.NoError(t, repo.MarkResolved(ctx, "b"))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dropped, err := repo.Discard(ctx, "a", "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
