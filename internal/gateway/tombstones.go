package gateway

import (
	"container/list"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const (
	DefaultTombstoneTTL = 30 * time.Minute
	DefaultTombstoneMax = 2000
)

// TombstoneSet remembers item ids the server reported as absent. Entries
// expire after ttl; past max the oldest insertion is dropped.
type TombstoneSet struct {
	ttl   time.Duration
	max   int
	clock ports.Clock

	mu      sync.Mutex
	order   *list.List
	entries map[string]*list.Element
}

type tombstone struct {
	id       string
	markedAt time.Time
}

func NewTombstoneSet(ttl time.Duration, maxEntries int, clock ports.Clock) *TombstoneSet {
	if ttl <= 0 {
		ttl = DefaultTombstoneTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultTombstoneMax
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &TombstoneSet{
		ttl:     ttl,
		max:     maxEntries,
		clock:   clock,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (s *TombstoneSet) IsTombstoned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[id]
	if !ok {
		return false
	}
	if s.clock.Now().Sub(el.Value.(tombstone).markedAt) >= s.ttl {
		s.order.Remove(el)
		delete(s.entries, id)
		return false
	}
	return true
}

// Mark records id as absent. Re-marking refreshes the timestamp and moves
// the id to the newest position.
func (s *TombstoneSet) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[id]; ok {
		s.order.Remove(el)
	}
	s.entries[id] = s.order.PushBack(tombstone{id: id, markedAt: s.clock.Now()})

	for s.order.Len() > s.max {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(tombstone).id)
	}
}

func (s *TombstoneSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.entries = make(map[string]*list.Element)
}

func (s *TombstoneSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
