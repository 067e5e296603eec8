package matcher

import "errors"

var (
	// ErrUnknownRole is returned when the requested role is not configured.
	// It is a client or configuration error and must not be retried.
	ErrUnknownRole = errors.New("unknown role")
	// ErrModelUnavailable wraps any failure of the embedding model, both while
	// building the role cache and while scoring.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)
