// Package pipeline resolves a derived attribute for registered elements once
// they come near the viewport, with a global cap on overlapping lookups.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/adapters/scheduler"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 3
	DefaultBatchSize   = 24
	DefaultDebounce    = 80 * time.Millisecond
	DefaultHintsMax    = 1000

	drainInterval = 10 * time.Millisecond
	idlePoll      = 10 * time.Millisecond

	// A registration stream never holds elements back longer than this many
	// debounce delays.
	debounceMaxWaitFactor = 4
)

type Config struct {
	Concurrency int
	BatchSize   int
	Debounce    time.Duration
	HintsMax    int
}

func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
		BatchSize:   DefaultBatchSize,
		Debounce:    DefaultDebounce,
		HintsMax:    DefaultHintsMax,
	}
}

func (c Config) normalized() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.HintsMax <= 0 {
		c.HintsMax = DefaultHintsMax
	}
	return c
}

// ItemSource fetches the backing item of an element. A nil item with a nil
// error means the item does not exist.
type ItemSource interface {
	CachedItem(ctx context.Context, id string) (*domain.Item, error)
}

type AttributeCache interface {
	Get(key string) (string, bool)
	Set(key, value string, kind domain.ItemKind) bool
	Snapshot() map[string]string
}

type Deps struct {
	Watcher  ports.VisibilityWatcher
	Renderer ports.Renderer
	Items    ItemSource
	// Cache is optional. Without it lookups always go to Items.
	Cache   AttributeCache
	Deriver Deriver
	// Scheduler coalesces registrations. Defaults to a debounce of
	// Config.Debounce.
	Scheduler ports.FlushScheduler
	Logger    *slog.Logger
}

type State int

const (
	StateUnregistered State = iota
	StateObserved
	StateQueued
	StateInFlight
	StateDone
)

func (s State) String() string {
	switch s {
	case StateObserved:
		return "observed"
	case StateQueued:
		return "queued"
	case StateInFlight:
		return "in-flight"
	case StateDone:
		return "done"
	default:
		return "unregistered"
	}
}

type Stats struct {
	Registered   int
	Pending      int
	Queued       int
	InFlight     int
	Done         int
	Rendered     int
	PeakInFlight int
	Hints        int
}

type slot struct {
	gen      uint32
	live     bool
	el       domain.Element
	state    State
	rendered bool
	cancel   context.CancelFunc
}

type job struct {
	id     domain.ElementID
	el     domain.Element
	ctx    context.Context
	cancel context.CancelFunc
}

type Pipeline struct {
	cfg       Config
	watcher   ports.VisibilityWatcher
	renderer  ports.Renderer
	items     ItemSource
	cache     AttributeCache
	deriver   Deriver
	scheduler ports.FlushScheduler
	logger    *slog.Logger
	sem       *semaphore.Weighted
	hints     *hintMap

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	snapshot   map[string]string
	slots      []slot
	free       []uint32
	pending    []domain.ElementID
	observing  int
	queue      []domain.ElementID
	drainTimer *time.Timer
	inFlight   int
	peak       int
	done       int
	rendered   int
	wg         sync.WaitGroup
}

var errMissingDependency = errors.New("pipeline requires a watcher, a renderer, an item source and a deriver")

func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Watcher == nil || deps.Renderer == nil || deps.Items == nil || deps.Deriver == nil {
		return nil, errMissingDependency
	}

	cfg = cfg.normalized()
	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.NewDebounce(cfg.Debounce, scheduler.WithMaxWait(debounceMaxWaitFactor*cfg.Debounce))
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Pipeline{
		cfg:       cfg,
		watcher:   deps.Watcher,
		renderer:  deps.Renderer,
		items:     deps.Items,
		cache:     deps.Cache,
		deriver:   deps.Deriver,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		hints:     newHintMap(cfg.HintsMax),
	}, nil
}

// Start takes the cache snapshot and begins draining the queue. Work is
// cancelled when ctx is done or Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	if p.cache != nil {
		p.snapshot = p.cache.Snapshot()
	}
	if len(p.queue) > 0 {
		p.scheduleDrainLocked(0)
	}
}

// Stop cancels in-flight lookups, drops queued work and waits for workers to
// return.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	if p.drainTimer != nil {
		p.drainTimer.Stop()
		p.drainTimer = nil
	}
	p.queue = nil
	p.pending = nil
	p.mu.Unlock()

	p.scheduler.Cancel()
	p.wg.Wait()
}

// Register adds an element. It is handed to the watcher on the next
// coalesced scheduling pass.
func (p *Pipeline) Register(el domain.Element) domain.ElementID {
	p.mu.Lock()
	id := p.allocLocked(el)
	stopped := p.stopped
	if !stopped {
		p.pending = append(p.pending, id)
	}
	p.mu.Unlock()

	if !stopped {
		p.scheduler.Schedule(p.flushPending)
	}
	return id
}

// Detach forgets the element. A lookup in flight for it is cancelled and its
// result discarded.
func (p *Pipeline) Detach(id domain.ElementID) bool {
	p.mu.Lock()
	s, ok := p.lookupLocked(id)
	if !ok {
		p.mu.Unlock()
		return false
	}

	cancel := s.cancel
	if s.state == StateQueued {
		p.queue = slices.DeleteFunc(p.queue, func(q domain.ElementID) bool { return q == id })
	}
	idx := id.Index()
	p.slots[idx] = slot{gen: s.gen + 1}
	p.free = append(p.free, idx)
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.watcher.Unobserve(id)
	return true
}

// Prime derives values from items already at hand so their elements never
// need a lookup.
func (p *Pipeline) Prime(items []domain.Item) {
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		value, ok := p.deriver.Derive(item)
		if !ok {
			continue
		}
		p.hints.put(item.ID, value)
		if p.cache != nil {
			p.cache.Set(item.ID, value, item.Type)
		}
	}
}

// ResetHints drops primed hints and the start snapshot. Used when the
// identity changes.
func (p *Pipeline) ResetHints() {
	p.hints.clear()
	p.mu.Lock()
	p.snapshot = nil
	p.mu.Unlock()
}

func (p *Pipeline) State(id domain.ElementID) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.lookupLocked(id)
	if !ok {
		return StateUnregistered
	}
	return s.state
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Registered:   len(p.slots) - len(p.free),
		Pending:      len(p.pending),
		Queued:       len(p.queue),
		InFlight:     p.inFlight,
		Done:         p.done,
		Rendered:     p.rendered,
		PeakInFlight: p.peak,
		Hints:        p.hints.len(),
	}
}

// WaitIdle blocks until no registration is pending, the queue is empty and
// nothing is in flight.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		if p.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) == 0 && p.observing == 0 && len(p.queue) == 0 && p.inFlight == 0
}

func (p *Pipeline) allocLocked(el domain.Element) domain.ElementID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		s := &p.slots[idx]
		s.live = true
		s.el = el
		s.state = StateObserved
		return domain.NewElementID(idx, s.gen)
	}

	p.slots = append(p.slots, slot{gen: 1, live: true, el: el, state: StateObserved})
	return domain.NewElementID(uint32(len(p.slots)-1), 1)
}

func (p *Pipeline) lookupLocked(id domain.ElementID) (*slot, bool) {
	idx := id.Index()
	if int(idx) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[idx]
	if !s.live || s.gen != id.Generation() {
		return nil, false
	}
	return s, true
}

type observation struct {
	id domain.ElementID
	el domain.Element
}

func (p *Pipeline) flushPending() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	batch := make([]observation, 0, len(p.pending))
	for _, id := range p.pending {
		if s, ok := p.lookupLocked(id); ok && s.state == StateObserved {
			batch = append(batch, observation{id: id, el: s.el})
		}
	}
	p.pending = nil
	p.observing++
	p.mu.Unlock()

	for _, o := range batch {
		id := o.id
		p.watcher.Observe(id, o.el, func() { p.onVisible(id) })
	}

	p.mu.Lock()
	p.observing--
	p.mu.Unlock()
	p.logger.Debug("observing elements", "count", len(batch))
}

func (p *Pipeline) onVisible(id domain.ElementID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.lookupLocked(id)
	if !ok || p.stopped || s.state != StateObserved || s.rendered {
		return
	}
	s.state = StateQueued
	p.queue = append(p.queue, id)
	if p.started {
		p.scheduleDrainLocked(0)
	}
}

func (p *Pipeline) scheduleDrainLocked(delay time.Duration) {
	if p.drainTimer != nil {
		return
	}
	p.drainTimer = time.AfterFunc(delay, p.drain)
}

func (p *Pipeline) drain() {
	p.mu.Lock()
	p.drainTimer = nil
	if p.stopped || !p.started {
		p.mu.Unlock()
		return
	}

	allot := min(p.cfg.BatchSize, len(p.queue))
	var jobs []job
	for allot > 0 && len(p.queue) > 0 {
		if !p.sem.TryAcquire(1) {
			break
		}
		id := p.queue[0]
		p.queue = p.queue[1:]

		s, ok := p.lookupLocked(id)
		if !ok || s.state != StateQueued {
			p.sem.Release(1)
			continue
		}
		allot--

		ctx, cancel := context.WithCancel(p.ctx)
		s.state = StateInFlight
		s.cancel = cancel
		p.inFlight++
		p.peak = max(p.peak, p.inFlight)
		jobs = append(jobs, job{id: id, el: s.el, ctx: ctx, cancel: cancel})
	}

	if len(p.queue) > 0 && p.inFlight < p.cfg.Concurrency {
		p.scheduleDrainLocked(drainInterval)
	}
	p.wg.Add(len(jobs))
	p.mu.Unlock()

	for _, j := range jobs {
		go p.run(j)
	}
}

func (p *Pipeline) run(j job) {
	defer p.wg.Done()
	defer j.cancel()

	value, ok := p.resolve(j.ctx, j.el)

	p.mu.Lock()
	s, live := p.lookupLocked(j.id)
	render := ok && live && j.ctx.Err() == nil && s.state == StateInFlight
	if render {
		s.rendered = true
		p.rendered++
	}
	p.mu.Unlock()

	// The job stays in flight until its value is rendered.
	if render {
		p.renderer.Render(j.id, j.el, value)
	}

	p.mu.Lock()
	p.sem.Release(1)
	p.inFlight--
	p.done++
	if s, live := p.lookupLocked(j.id); live {
		s.state = StateDone
		s.cancel = nil
	}
	if len(p.queue) > 0 && !p.stopped {
		p.scheduleDrainLocked(drainInterval)
	}
	p.mu.Unlock()
}

// resolve walks the value sources from cheapest to most expensive.
func (p *Pipeline) resolve(ctx context.Context, el domain.Element) (string, bool) {
	if el.Hint != "" {
		return el.Hint, true
	}
	if v, ok := p.hints.get(el.ItemID); ok {
		return v, true
	}

	p.mu.Lock()
	v, ok := p.snapshot[el.ItemID]
	p.mu.Unlock()
	if ok {
		return v, true
	}

	if p.cache != nil {
		if v, ok := p.cache.Get(el.ItemID); ok {
			return v, true
		}
	}

	item, err := p.items.CachedItem(ctx, el.ItemID)
	if err != nil {
		p.logFailure(el.ItemID, err)
		return "", false
	}
	if item == nil {
		return "", false
	}

	value, ok := p.deriver.Derive(*item)
	if !ok {
		return "", false
	}
	if p.cache != nil {
		p.cache.Set(el.ItemID, value, item.Type)
	}
	return value, true
}

func (p *Pipeline) logFailure(itemID string, err error) {
	switch {
	case domain.IsSilent(err), errors.Is(err, context.Canceled), errors.Is(err, domain.ErrInvalidItemID):
		p.logger.Debug("attribute lookup skipped", "item_id", itemID, "error", err)
	default:
		p.logger.Warn("attribute lookup failed", "item_id", itemID, "error", err)
	}
}
