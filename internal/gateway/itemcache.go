package gateway

import (
	"container/list"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const (
	DefaultItemCacheTTL = 10 * time.Minute
	DefaultItemCacheMax = 600
)

// itemCache holds recently fetched items for CachedItem.
type itemCache struct {
	ttl   time.Duration
	max   int
	clock ports.Clock

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
}

type cachedItem struct {
	item     domain.Item
	storedAt time.Time
}

func newItemCache(ttl time.Duration, maxEntries int, clock ports.Clock) *itemCache {
	if ttl <= 0 {
		ttl = DefaultItemCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultItemCacheMax
	}
	return &itemCache{
		ttl:     ttl,
		max:     maxEntries,
		clock:   clock,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *itemCache) get(id string) (domain.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return domain.Item{}, false
	}
	entry := el.Value.(cachedItem)
	if c.clock.Now().Sub(entry.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, id)
		return domain.Item{}, false
	}
	return entry.item, true
}

func (c *itemCache) put(item domain.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[item.ID]; ok {
		c.order.Remove(el)
	}
	c.entries[item.ID] = c.order.PushBack(cachedItem{item: item, storedAt: c.clock.Now()})

	for c.order.Len() > c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(cachedItem).item.ID)
	}
}

func (c *itemCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *itemCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *itemCache) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		c.order.Remove(el)
		delete(c.entries, id)
	}
}
