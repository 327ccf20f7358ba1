package retry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRetryLimit is wrapped by a FatalError when a chain ran out of retries.
var ErrRetryLimit = errors.New("retry limit exceeded")

// FatalError is returned when a single operation failed in a way retrying cannot fix.
type FatalError struct {
	Op     string
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("invoking elasticsearch_api %s resulted in a runtime error: %s", e.Op, e.Reason)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// BulkError is returned when a bulk write hit a non-retriable item or transport failure.
type BulkError struct {
	// Reason is "type--reason" of the first fatal item, or "bulk sender error: ..."
	// when the request itself failed.
	Reason string
	// Unfinished holds the bulk lines of every item that neither succeeded
	// nor was an ignorable conflict in the failing response.
	Unfinished []any
	Err        error
}

func (e *BulkError) Error() string {
	return e.Reason
}

func (e *BulkError) Unwrap() error {
	return e.Err
}

// ShardError is returned when a search reported shard failures that are not uniformly overload.
type ShardError struct {
	Types []string
}

func (e *ShardError) Error() string {
	if len(e.Types) == 0 {
		return "shard failures without reason"
	}
	return strings.Join(e.Types, " | ")
}

// IsFatal reports whether err ended a retry chain.
func IsFatal(err error) bool {
	var fe *FatalError
	var be *BulkError
	var se *ShardError
	return errors.As(err, &fe) || errors.As(err, &be) || errors.As(err, &se)
}
