package control

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/config"
)

func newCluster(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/_bulk":
			_, _ = io.WriteString(w, `{"took":1,"errors":true,"items":[
				{"index":{"_index":"logs","_id":"1","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func parseConfig(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestApp_MemoryDeadLetters(t *testing.T) {
	ts := newCluster(t)
	cfg := parseConfig(t, `
cluster:
  urls: [`+ts.URL+`]
dead_letter:
  backend: memory
`)
	ctx := context.Background()

	app, err := New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Client().Ping(ctx))

	_, err = app.Client().BulkSend(ctx, []any{
		map[string]any{"index": map[string]any{"_index": "logs", "_id": "1"}},
		map[string]any{"n": "x"},
	})
	require.Error(t, err)

	n, err := app.DeadLetters().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := httptest.NewRecorder()
	app.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}

func TestApp_DeadLetteringDisabled(t *testing.T) {
	ts := newCluster(t)
	cfg := parseConfig(t, `cluster: {urls: [`+ts.URL+`]}`)

	app, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DeadLetters())
	report := app.Health().CheckHealth(context.Background())
	assert.Nil(t, report.DeadLetter)
	assert.True(t, report.Cluster.Reachable)
}
