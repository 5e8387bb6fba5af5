package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Candidate failure taxonomy. All of these are recovered by the orchestrator.
var (
	// ErrMalformed marks a payload that does not decode as the tier's schema.
	ErrMalformed = errors.New("malformed upstream payload")
	// ErrEmpty marks a structurally valid but empty result list.
	ErrEmpty = errors.New("empty upstream result")
	// ErrParse marks a page whose embedded data could not be located or decoded.
	ErrParse = errors.New("embedded data not found")
	// ErrNoCandidates marks a tier that had nothing to try.
	ErrNoCandidates = errors.New("no candidates")
)

// StatusError is a non-success upstream HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d %s", e.Code, http.StatusText(e.Code))
}

// IsTimeout reports whether err was caused by a per-candidate deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// failureKind names the class of a candidate failure for logs.
func failureKind(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &se):
		return "status"
	default:
		return "network"
	}
}
