package retry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
)

func TestWarnThrottle_OncePerWindow(t *testing.T) {
	th := NewWarnThrottle(0)
	assert.Equal(t, DefaultWarnInterval, th.Interval)

	n := 0
	for range 5 {
		th.Do(func() { n++ })
	}
	assert.Equal(t, 1, n)
}

func TestBulk_OverloadWarningSharedAcrossExecutors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	shared := NewWarnThrottle(DefaultWarnInterval)
	rec := &sleepRecorder{}

	rejectedOnce := func() *bulkScript {
		return &bulkScript{responses: []*domain.BulkResponse{
			{Errors: true, Items: []domain.BulkItem{failed("index", 429, domain.ErrTypeRejectedExecution, "full")}},
			{},
		}}
	}

	for range 3 {
		e := NewExecutor(DefaultPolicy, WithLogger(log), WithThrottle(shared), WithSleep(rec.sleep))
		_, err := e.Bulk(context.Background(), rejectedOnce(), []any{indexLine("1"), map[string]any{}})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, strings.Count(buf.String(), bulkOverloadWarning))
	assert.Equal(t, 3, rec.count())
}
