package domain

import "encoding/json"

// FailedDocument is a bulk span (action + optional payload) that the cluster
// rejected with a non-retriable error and was parked for manual replay.
type FailedDocument struct {
	ID          string          `json:"id"           db:"id"`
	BatchID     string          `json:"batch_id"     db:"batch_id"`
	Action      json.RawMessage `json:"action"       db:"action"`
	Payload     json.RawMessage `json:"payload"      db:"payload"`
	Error       string          `json:"error_msg"    db:"error_msg"`
	RetryCount  int             `json:"retry_count"  db:"retry_count"`
	Status      FailedDocStatus `json:"status"       db:"status"`
	LastAttempt int64           `json:"last_attempt" db:"last_attempt"`
	CreatedAt   int64           `json:"created_at"   db:"created_at"`
}

// Body returns the bulk lines for this document, ready to resubmit.
func (f *FailedDocument) Body() []any {
	if len(f.Payload) == 0 {
		return []any{f.Action}
	}
	return []any{f.Action, f.Payload}
}

type FailedDocStatus string

const (
	FailedDocStatusPending  FailedDocStatus = "pending"
	FailedDocStatusResolved FailedDocStatus = "resolved"
)
