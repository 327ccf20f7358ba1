package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/esguard/internal/infra/es"
	"github.com/vietddude/esguard/internal/infra/storage"
)

// Replaying resubmits dead letters. es.Client satisfies it.
type Replaying interface {
	ReplayDeadLetters(ctx context.Context, repo storage.DeadLetterRepository, limit int) (es.ReplayReport, error)
}

// Replayer periodically resubmits pending dead letters.
type Replayer struct {
	client   Replaying
	repo     storage.DeadLetterRepository
	interval time.Duration
	limit    int
	log      *slog.Logger
}

// NewReplayer creates a new Replayer worker.
func NewReplayer(client Replaying, repo storage.DeadLetterRepository, interval time.Duration, limit int, log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.Default()
	}
	return &Replayer{
		client:   client,
		repo:     repo,
		interval: interval,
		limit:    limit,
		log:      log,
	}
}

// Start runs the replay loop until ctx is cancelled.
func (r *Replayer) Start(ctx context.Context) {
	if r.interval <= 0 || r.repo == nil {
		return // Replay disabled
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.replay(ctx)
		}
	}
}

func (r *Replayer) replay(ctx context.Context) {
	pending, err := r.repo.Count(ctx)
	if err != nil {
		r.log.Error("[Replayer] failed to count dead letters", "error", err)
		return
	}
	if pending == 0 {
		return
	}

	report, err := r.client.ReplayDeadLetters(ctx, r.repo, r.limit)
	if err != nil {
		r.log.Error("[Replayer] replay failed", "error", err)
		return
	}
	r.log.Info("[Replayer] replayed dead letters",
		"attempted", report.Attempted,
		"resolved", report.Resolved,
		"failed", report.Failed,
	)
}
