package scheduler

import (
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const defaultDelay = 200 * time.Millisecond

// Debounce runs the most recently scheduled function once the delay has
// passed without another Schedule call. With a max wait, a steady stream of
// Schedule calls still fires once that long after the first pending one.
type Debounce struct {
	delay   time.Duration
	maxWait time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending time.Time
}

var _ ports.FlushScheduler = (*Debounce)(nil)

type DebounceOption func(*Debounce)

// WithMaxWait caps how long a pending function can be postponed. Zero or
// less means no cap.
func WithMaxWait(maxWait time.Duration) DebounceOption {
	return func(d *Debounce) {
		d.maxWait = maxWait
	}
}

func NewDebounce(delay time.Duration, opts ...DebounceOption) *Debounce {
	if delay <= 0 {
		delay = defaultDelay
	}
	d := &Debounce{delay: delay}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Debounce) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	now := time.Now()
	if d.pending.IsZero() {
		d.pending = now
	}
	wait := d.delay
	if d.maxWait > 0 {
		if left := d.pending.Add(d.maxWait).Sub(now); left < wait {
			wait = max(left, 0)
		}
	}

	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(wait, func() {
		d.mu.Lock()
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.pending = time.Time{}
		d.mu.Unlock()

		fn()
	})
}

func (d *Debounce) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = time.Time{}
	d.seq++
}

// Immediate runs scheduled functions synchronously on the caller.
type Immediate struct{}

var _ ports.FlushScheduler = Immediate{}

func (Immediate) Schedule(fn func()) { fn() }
func (Immediate) Cancel()            {}
