package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

// Store keeps slots in process memory. A positive quota bounds the summed
// byte length of keys and values.
type Store struct {
	mu         sync.RWMutex
	values     map[string]string
	used       int64
	quotaBytes int64
}

var _ ports.Storage = (*Store)(nil)

func NewStore(quotaBytes int64) *Store {
	return &Store{values: map[string]string{}, quotaBytes: quotaBytes}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("memory slot %q: %w", key, domain.ErrKeyNotFound)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + int64(len(key)+len(value))
	if old, ok := s.values[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if s.quotaBytes > 0 && used > s.quotaBytes {
		return fmt.Errorf("write memory slot %q (%d of %d bytes): %w", key, used, s.quotaBytes, ports.ErrQuotaExceeded)
	}

	s.values[key] = value
	s.used = used
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.values[key]; ok {
		s.used -= int64(len(key) + len(old))
		delete(s.values, key)
	}

	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

// UsedBytes reports the bytes counted against the quota.
func (s *Store) UsedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
