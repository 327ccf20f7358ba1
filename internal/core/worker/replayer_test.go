package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
	"github.com/vietddude/esguard/internal/infra/es"
	"github.com/vietddude/esguard/internal/infra/storage"
	"github.com/vietddude/esguard/internal/infra/storage/memory"
)

type countingReplay struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (c *countingReplay) ReplayDeadLetters(ctx context.Context, repo storage.DeadLetterRepository, limit int) (es.ReplayReport, error) {
	c.calls.Add(1)
	c.limit.Store(int32(limit))
	docs, err := repo.GetPending(ctx, limit)
	if err != nil {
		return es.ReplayReport{}, err
	}
	for _, d := range docs {
		if err := repo.MarkResolved(ctx, d.ID); err != nil {
			return es.ReplayReport{}, err
		}
	}
	return es.ReplayReport{Attempted: len(docs), Resolved: len(docs)}, nil
}

func TestReplayer_SkipsEmptyBacklog(t *testing.T) {
	client := &countingReplay{}
	r := NewReplayer(client, memory.NewDeadLetterRepo(), time.Hour, 10, nil)

	r.replay(context.Background())

	assert.Zero(t, client.calls.Load())
}

func TestReplayer_ReplaysPending(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeadLetterRepo()
	require.NoError(t, repo.Add(ctx, &domain.FailedDocument{ID: "a", Action: []byte(`{"index":{}}`)}))

	client := &countingReplay{}
	r := NewReplayer(client, repo, time.Hour, 10, nil)
	r.replay(ctx)

	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, int32(10), client.limit.Load())
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayer_StartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := memory.NewDeadLetterRepo()
	require.NoError(t, repo.Add(ctx, &domain.FailedDocument{ID: "a", Action: []byte(`{"index":{}}`)}))

	client := &countingReplay{}
	r := NewReplayer(client, repo, 5*time.Millisecond, 0, nil)

	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return client.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("replayer did not stop")
	}
}

func TestReplayer_DisabledReturnsImmediately(t *testing.T) {
	r := NewReplayer(&countingReplay{}, memory.NewDeadLetterRepo(), 0, 0, nil)
	r.Start(context.Background())
}
