package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

// Store reads and writes the primary backend and falls back to the secondary
// one when the primary fails.
type Store struct {
	primary  ports.Storage
	fallback ports.Storage
}

var _ ports.Storage = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary storage is nil")
	errNilFallbackStore = errors.New("fallback storage is nil")
)

func NewStore(primary ports.Storage, fallback ports.Storage) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.Storage, fallback ports.Storage) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	err := s.primary.Set(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Set(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend set failed: %w; fallback backend set failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}
	if errors.Is(err, domain.ErrKeyNotFound) && errors.Is(fallbackErr, domain.ErrKeyNotFound) {
		return "", err
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Remove clears the key from both backends so a stale fallback copy cannot
// resurface on the next Get.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.primary.Remove(ctx, key)
	if err != nil && shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Remove(ctx, key)
	switch {
	case err == nil && fallbackErr == nil:
		return nil
	case fallbackErr == nil:
		return fmt.Errorf("primary backend remove failed: %w", err)
	case err == nil:
		return fmt.Errorf("fallback backend remove failed: %w", fallbackErr)
	}

	return fmt.Errorf("primary backend remove failed: %w; fallback backend remove failed: %w", err, fallbackErr)
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	primaryKeys, err := s.primary.Keys(ctx)
	if err != nil && shouldSkipFallback(err) {
		return nil, err
	}

	fallbackKeys, fallbackErr := s.fallback.Keys(ctx)
	if err != nil && fallbackErr != nil {
		return nil, fmt.Errorf("primary backend keys failed: %w; fallback backend keys failed: %w", err, fallbackErr)
	}

	seen := make(map[string]struct{}, len(primaryKeys)+len(fallbackKeys))
	keys := make([]string, 0, len(primaryKeys)+len(fallbackKeys))
	for _, key := range append(primaryKeys, fallbackKeys...) {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

// Quota exhaustion is surfaced to the caller, which owns eviction.
func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ports.ErrQuotaExceeded)
}
