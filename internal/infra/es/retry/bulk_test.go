package retry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/esguard/internal/core/domain"
)

type bulkScript struct {
	bodies    [][]any
	responses []*domain.BulkResponse
	errs      []error
}

func (s *bulkScript) Bulk(_ context.Context, body []any) (*domain.BulkResponse, error) {
	i := len(s.bodies)
	s.bodies = append(s.bodies, body)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return &domain.BulkResponse{}, nil
}

func indexLine(id string) map[string]any {
	return map[string]any{"index": map[string]any{"_index": "logs", "_id": id}}
}

func okItem(action string) domain.BulkItem {
	return domain.BulkItem{action: {Status: 201}}
}

func failed(action string, status int, typ, reason string) domain.BulkItem {
	return domain.BulkItem{action: {Status: status, Error: &domain.ErrorCause{Type: typ, Reason: reason}}}
}

func threeDocs() []any {
	return []any{
		indexLine("1"), map[string]any{"msg": "a"},
		indexLine("2"), map[string]any{"msg": "b"},
		indexLine("3"), map[string]any{"msg": "c"},
	}
}

func TestBulk_AllConflictsResolveImmediately(t *testing.T) {
	e, rec, th := newTestExecutor(DefaultPolicy)
	resp := &domain.BulkResponse{Errors: true, Items: []domain.BulkItem{
		failed("create", 409, "version_conflict_engine_exception", "exists"),
		failed("create", 409, "version_conflict_engine_exception", "exists"),
		failed("create", 409, "version_conflict_engine_exception", "exists"),
	}}
	sender := &bulkScript{responses: []*domain.BulkResponse{resp}}

	got, err := e.Bulk(context.Background(), sender, threeDocs())

	require.NoError(t, err)
	assert.Same(t, resp, got)
	assert.Len(t, sender.bodies, 1)
	assert.Empty(t, rec.delays)
	assert.Zero(t, th.n)
}

func TestBulk_ResubmitsOnlyRejectedDocuments(t *testing.T) {
	e, rec, th := newTestExecutor(DefaultPolicy)
	data := threeDocs()
	final := &domain.BulkResponse{Items: []domain.BulkItem{okItem("index")}}
	sender := &bulkScript{responses: []*domain.BulkResponse{
		{Errors: true, Items: []domain.BulkItem{
			okItem("index"),
			okItem("index"),
			failed("index", 429, domain.ErrTypeRejectedExecution, "queue full"),
		}},
		final,
	}}

	got, err := e.Bulk(context.Background(), sender, data)

	require.NoError(t, err)
	assert.Same(t, final, got)
	require.Len(t, sender.bodies, 2)
	assert.Equal(t, []any{data[4], data[5]}, sender.bodies[1])
	assert.Len(t, rec.delays, 1)
	assert.Equal(t, 1, th.n)
}

func TestBulk_FatalItemShortCircuits(t *testing.T) {
	e, rec, _ := newTestExecutor(DefaultPolicy)
	data := threeDocs()
	sender := &bulkScript{responses: []*domain.BulkResponse{
		{Errors: true, Items: []domain.BulkItem{
			failed("index", 429, domain.ErrTypeRejectedExecution, "queue full"),
			failed("index", 400, "mapper_parsing_exception", "failed to parse field [msg]"),
			failed("index", 400, "illegal_argument_exception", "bad"),
		}},
	}}

	_, err := e.Bulk(context.Background(), sender, data)

	require.Error(t, err)
	assert.Equal(t, "mapper_parsing_exception--failed to parse field [msg]", err.Error())
	assert.Len(t, sender.bodies, 1)
	assert.Empty(t, rec.delays)

	var be *BulkError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, data, be.Unfinished)
}

func TestBulk_IgnoresExistingAndMissingDocuments(t *testing.T) {
	e, _, _ := newTestExecutor(DefaultPolicy)
	sender := &bulkScript{responses: []*domain.BulkResponse{
		{Errors: true, Items: []domain.BulkItem{
			failed("create", 409, domain.ErrTypeDocumentExists, "exists"),
			failed("update", 404, domain.ErrTypeDocumentMissing, "missing"),
			okItem("index"),
		}},
	}}

	_, err := e.Bulk(context.Background(), sender, threeDocs())

	require.NoError(t, err)
	assert.Len(t, sender.bodies, 1)
}

func TestBulk_DeleteActionOccupiesOneSlot(t *testing.T) {
	e, _, _ := newTestExecutor(DefaultPolicy)
	body := []any{
		map[string]any{"delete": map[string]any{"_index": "logs", "_id": "0"}},
		indexLine("1"), map[string]any{"msg": "a"},
		json.RawMessage(`{"delete":{"_index":"logs","_id":"2"}}`),
		indexLine("3"), map[string]any{"msg": "c"},
	}
	sender := &bulkScript{responses: []*domain.BulkResponse{
		{Errors: true, Items: []domain.BulkItem{
			okItem("delete"),
			failed("index", 429, domain.ErrTypeRejectedExecution, "queue full"),
			failed("delete", 429, domain.ErrTypeRejectedExecution, "queue full"),
			okItem("index"),
		}},
		{},
	}}

	_, err := e.Bulk(context.Background(), sender, body)

	require.NoError(t, err)
	require.Len(t, sender.bodies, 2)
	assert.Equal(t, []any{body[1], body[2], body[3]}, sender.bodies[1])
}

func TestBulk_TransportErrors(t *testing.T) {
	t.Run("retriable resends the same body", func(t *testing.T) {
		e, rec, _ := newTestExecutor(DefaultPolicy)
		data := threeDocs()
		sender := &bulkScript{errs: []error{domain.ErrNoLivingConnections}}

		_, err := e.Bulk(context.Background(), sender, data)

		require.NoError(t, err)
		require.Len(t, sender.bodies, 2)
		assert.Equal(t, data, sender.bodies[1])
		assert.Len(t, rec.delays, 1)
	})

	t.Run("fatal rejects with sender error", func(t *testing.T) {
		e, _, _ := newTestExecutor(DefaultPolicy)
		data := threeDocs()
		sender := &bulkScript{errs: []error{errors.New("boom")}}

		_, err := e.Bulk(context.Background(), sender, data)

		require.Error(t, err)
		assert.Equal(t, "bulk sender error: boom", err.Error())
		var be *BulkError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, data, be.Unfinished)
	})
}

func TestBulkSpans(t *testing.T) {
	tests := []struct {
		name   string
		body   []any
		expect []span
	}{
		{"empty", nil, []span{}},
		{"pairs", threeDocs(), []span{{0, 2}, {2, 4}, {4, 6}}},
		{"odd tail", []any{indexLine("1")}, []span{{0, 1}}},
		{"delete string", []any{`{"delete":{"_id":"1"}}`, indexLine("2"), "{}"}, []span{{0, 1}, {1, 3}}},
		{"delete with extra key is a pair", []any{map[string]any{"delete": 1, "x": 2}, "{}"}, []span{{0, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, bulkSpans(tt.body))
		})
	}
}
