package ports

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the backend has no room left for
// the value.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Storage is a string key/value slot store. Get returns domain.ErrKeyNotFound
// for absent keys.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
