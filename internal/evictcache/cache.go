// Package evictcache is a capacity-bounded key/value cache mirrored into a
// single storage slot. Persistence is best effort: when the slot keeps
// rejecting writes for lack of quota, the cache degrades to memory only.
package evictcache

import (
	"bytes"
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

type Entry[V any] struct {
	Key        string
	Value      V
	Kind       domain.ItemKind
	InsertedAt time.Time
}

type Option func(*settings)

type settings struct {
	scheduler ports.FlushScheduler
	clock     ports.Clock
	logger    *slog.Logger
}

func WithScheduler(s ports.FlushScheduler) Option { return func(o *settings) { o.scheduler = s } }
func WithClock(c ports.Clock) Option              { return func(o *settings) { o.clock = c } }
func WithLogger(l *slog.Logger) Option            { return func(o *settings) { o.logger = l } }

// Cache is safe for concurrent use. The front of order is the oldest entry.
type Cache[V any] struct {
	cfg       Config
	storage   ports.Storage
	scheduler ports.FlushScheduler
	clock     ports.Clock
	logger    *slog.Logger

	mu         sync.Mutex
	order      *list.List
	index      map[string]*list.Element
	memoryOnly bool
	pending    bool
}

// New builds a cache and loads the persisted blob. A nil storage starts the
// cache in memory-only mode.
func New[V any](ctx context.Context, cfg Config, storage ports.Storage, opts ...Option) *Cache[V] {
	o := settings{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheduler == nil {
		o.scheduler = inlineScheduler{}
	}
	if o.clock == nil {
		o.clock = ports.SystemClock{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Cache[V]{
		cfg:        cfg.normalized(),
		storage:    storage,
		scheduler:  o.scheduler,
		clock:      o.clock,
		logger:     o.logger,
		order:      list.New(),
		index:      map[string]*list.Element{},
		memoryOnly: storage == nil,
	}
	c.load(ctx)

	return c
}

func (c *Cache[V]) Config() Config {
	return c.cfg
}

// Get returns the value for key if present, of an allowed kind, and younger
// than the tier expiry. Expired entries are dropped on read.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*Entry[V])
	if !c.allowed(entry.Kind) {
		return zero, false
	}
	if c.expired(entry) {
		c.removeElement(elem)
		return zero, false
	}

	return entry.Value, true
}

// Set stores value at the most recent position, evicts down to the soft
// ceiling and schedules a flush. Kinds outside the tier are ignored and
// reported as not stored.
func (c *Cache[V]) Set(key string, value V, kind domain.ItemKind) bool {
	if key == "" || !c.allowed(kind) {
		return false
	}

	c.mu.Lock()
	if elem, ok := c.index[key]; ok {
		c.removeElement(elem)
	}
	c.index[key] = c.order.PushBack(&Entry[V]{
		Key:        key,
		Value:      value,
		Kind:       kind,
		InsertedAt: c.clock.Now(),
	})
	for c.order.Len() > c.cfg.SoftCeiling {
		c.removeElement(c.order.Front())
	}
	schedule := !c.memoryOnly && !c.pending
	if schedule {
		c.pending = true
	}
	c.mu.Unlock()

	if schedule {
		c.scheduler.Schedule(c.scheduledFlush)
	}
	return true
}

// Snapshot returns every live, value-bearing entry.
func (c *Cache[V]) Snapshot() map[string]V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]V, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry[V])
		if c.expired(entry) || !c.allowed(entry.Kind) {
			continue
		}
		out[entry.Key] = entry.Value
	}
	return out
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys lists keys oldest first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*Entry[V]).Key)
	}
	return keys
}

func (c *Cache[V]) MemoryOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryOnly
}

// ClearAll empties the cache and removes the persisted blob. Memory-only mode
// survives a clear.
func (c *Cache[V]) ClearAll(ctx context.Context) error {
	c.scheduler.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	clear(c.index)
	c.pending = false

	if c.storage == nil {
		return nil
	}
	if err := c.storage.Remove(ctx, c.cfg.StorageKey); err != nil {
		return fmt.Errorf("remove cache blob: %w", err)
	}
	return nil
}

// Flush cancels any scheduled flush and persists synchronously.
func (c *Cache[V]) Flush(ctx context.Context) error {
	c.scheduler.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
	return c.persist(ctx)
}

func (c *Cache[V]) Close() error {
	return c.Flush(context.Background())
}

func (c *Cache[V]) scheduledFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = false
	if err := c.persist(context.Background()); err != nil {
		c.logger.Warn("cache flush failed", "storage_key", c.cfg.StorageKey, "error", err)
	}
}

// persist writes the blob, evicting the oldest batch and retrying while the
// backend reports quota exhaustion. Callers hold mu.
func (c *Cache[V]) persist(ctx context.Context) error {
	if c.memoryOnly {
		return nil
	}

	for c.order.Len() > c.cfg.HardMax {
		c.removeElement(c.order.Front())
	}

	err := c.write(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !errors.Is(err, ports.ErrQuotaExceeded) {
		c.memoryOnly = true
		c.logger.Warn("cache persistence disabled", "storage_key", c.cfg.StorageKey, "error", err)
		return nil
	}

	for attempt := 1; attempt <= c.cfg.MaxQuotaAttempts; attempt++ {
		evicted := 0
		for evicted < c.cfg.EvictBatch && c.order.Len() > 0 {
			c.removeElement(c.order.Front())
			evicted++
		}
		if evicted == 0 {
			break
		}

		err = c.write(ctx)
		if err == nil {
			c.logger.Debug("cache persisted after quota eviction",
				"storage_key", c.cfg.StorageKey, "attempt", attempt, "entries", c.order.Len())
			return nil
		}
		if !errors.Is(err, ports.ErrQuotaExceeded) {
			break
		}
	}

	c.memoryOnly = true
	c.logger.Warn("cache quota exhausted, continuing in memory",
		"storage_key", c.cfg.StorageKey, "entries", c.order.Len())
	return nil
}

func (c *Cache[V]) write(ctx context.Context) error {
	entries := make([]*Entry[V], 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, elem.Value.(*Entry[V]))
	}

	blob, err := encodeBlob(entries)
	if err != nil {
		return err
	}
	return c.storage.Set(ctx, c.cfg.StorageKey, blob)
}

func (c *Cache[V]) load(ctx context.Context) {
	if c.memoryOnly {
		return
	}

	raw, err := c.storage.Get(ctx, c.cfg.StorageKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.memoryOnly = true
			c.logger.Warn("cache storage unavailable", "storage_key", c.cfg.StorageKey, "error", err)
		}
		return
	}

	entries, err := decodeBlob(raw)
	if err != nil {
		if !errors.Is(err, errEmptyBlob) {
			c.logger.Warn("discarding unreadable cache blob", "storage_key", c.cfg.StorageKey, "error", err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, raw := range entries {
		entry, ok := decodeEntry[V](raw)
		if !ok || !c.allowed(entry.Kind) {
			continue
		}
		if elem, exists := c.index[entry.Key]; exists {
			c.removeElement(elem)
		}
		c.index[entry.Key] = c.order.PushBack(entry)
	}

	if c.order.Len() > c.cfg.HardMax {
		for c.order.Len() > c.cfg.HardMax {
			c.removeElement(c.order.Front())
		}
		if err := c.persist(ctx); err != nil {
			c.logger.Warn("cache trim persist failed", "storage_key", c.cfg.StorageKey, "error", err)
		}
	}
}

func decodeEntry[V any](raw blobEntry) (*Entry[V], bool) {
	if raw.Key == "" || raw.Timestamp <= 0 {
		return nil, false
	}
	value := bytes.TrimSpace(raw.Value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) || bytes.Equal(value, []byte(`""`)) {
		return nil, false
	}

	var v V
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, false
	}

	return &Entry[V]{
		Key:        raw.Key,
		Value:      v,
		Kind:       domain.ItemKind(raw.Kind),
		InsertedAt: time.UnixMilli(raw.Timestamp),
	}, true
}

func (c *Cache[V]) allowed(kind domain.ItemKind) bool {
	return slices.Contains(c.cfg.AllowedKinds, kind)
}

func (c *Cache[V]) expired(entry *Entry[V]) bool {
	return c.clock.Now().Sub(entry.InsertedAt) >= c.cfg.Expiry
}

func (c *Cache[V]) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*Entry[V])
	delete(c.index, entry.Key)
}

type inlineScheduler struct{}

func (inlineScheduler) Schedule(fn func()) { fn() }
func (inlineScheduler) Cancel()            {}
