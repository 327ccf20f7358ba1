package retry

import (
	"errors"
	"strings"

	"github.com/vietddude/esguard/internal/core/domain"
)

// Category is the retry decision for a failure.
type Category int

const (
	Fatal Category = iota
	RetriableOverload
	RetriableConnection
	IgnorableConflict
)

func (c Category) String() string {
	switch c {
	case RetriableOverload:
		return "overload"
	case RetriableConnection:
		return "connection"
	case IgnorableConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// Retriable reports whether the failure should be retried after backoff.
func (c Category) Retriable() bool {
	return c == RetriableOverload || c == RetriableConnection
}

// Classification is a classified failure with its human-readable reason.
type Classification struct {
	Category Category
	Reason   string
}

const noLivingConnections = "No Living connections"

// Classify maps a transport failure to a retry decision.
// Unknown shapes, including nil, are Fatal.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: Fatal, Reason: "unknown error"}
	}

	var ce *domain.ClusterError
	if errors.As(err, &ce) && ce != nil && ce.Type == domain.ErrTypeRejectedExecution {
		return Classification{Category: RetriableOverload, Reason: Reason(err)}
	}

	if errors.Is(err, domain.ErrNoLivingConnections) || strings.Contains(err.Error(), noLivingConnections) {
		return Classification{Category: RetriableConnection, Reason: Reason(err)}
	}

	return Classification{Category: Fatal, Reason: Reason(err)}
}

// ClassifyItem decides what to do with one errored bulk item.
func ClassifyItem(item domain.BulkItemResult) Classification {
	if item.Error == nil || item.Status == domain.StatusConflict {
		return Classification{Category: IgnorableConflict}
	}

	switch item.Error.Type {
	case domain.ErrTypeRejectedExecution:
		return Classification{Category: RetriableOverload, Reason: itemReason(item.Error)}
	case domain.ErrTypeDocumentExists, domain.ErrTypeDocumentMissing:
		return Classification{Category: IgnorableConflict, Reason: itemReason(item.Error)}
	default:
		return Classification{Category: Fatal, Reason: itemReason(item.Error)}
	}
}

// Reason extracts a human-readable reason from a failure.
func Reason(err error) string {
	if err == nil {
		return "unknown error"
	}

	var ce *domain.ClusterError
	if errors.As(err, &ce) && ce != nil {
		switch {
		case ce.Type != "" && ce.Reason != "":
			return ce.Type + ": " + ce.Reason
		case ce.Type != "":
			return ce.Type
		case ce.Reason != "":
			return ce.Reason
		}
	}

	return err.Error()
}

func itemReason(cause *domain.ErrorCause) string {
	return cause.Type + "--" + cause.Reason
}
