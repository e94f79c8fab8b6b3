package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIdentityUnavailable = errors.New("identity unavailable")
	ErrAuthNotReady        = errors.New("auth not ready")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrAborted             = errors.New("request aborted")
	ErrKeyNotFound         = errors.New("key not found")
	ErrInvalidItemID       = errors.New("invalid item id")
)

// HTTPError is a terminal non-2xx response other than 401, 403 and 404.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog request failed (status %d)", e.Status)
	}
	return fmt.Sprintf("catalog request failed (status %d): %s", e.Status, e.Message)
}

// IsSilent reports whether err belongs to the classes that callers skip
// without logging: aborts and requests gated on auth readiness.
func IsSilent(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, ErrAuthNotReady)
}
