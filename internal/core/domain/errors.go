package domain

import (
	"errors"
	"fmt"
)

const (
	// ErrTypeRejectedExecution is the admission-control rejection signal of an overloaded cluster.
	ErrTypeRejectedExecution = "es_rejected_execution_exception"
	// ErrTypeDocumentExists is reported when create hits an existing id.
	ErrTypeDocumentExists = "document_already_exists_exception"
	// ErrTypeDocumentMissing is reported when update hits a missing id.
	ErrTypeDocumentMissing = "document_missing_exception"

	// StatusConflict is the bulk item status of a create on an existing document.
	StatusConflict = 409
)

// ErrNoLivingConnections is wrapped by transports when no cluster node is reachable.
var ErrNoLivingConnections = errors.New("No Living connections") //nolint:staticcheck // message matches the cluster driver

// ClusterError is a failure reported by the cluster with a structured cause.
type ClusterError struct {
	Status int
	Type   string
	Reason string
}

func (e *ClusterError) Error() string {
	if e == nil {
		return "cluster error"
	}
	if e.Type == "" {
		return fmt.Sprintf("cluster error (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}
