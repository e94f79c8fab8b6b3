// Package viewport simulates a scrolling list for the visibility watcher
// port. Elements sit at vertical offsets and trigger once when they come
// within the margin of the visible window.
package viewport

import (
	"sort"
	"sync"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const (
	DefaultMargin = 300
	DefaultHeight = 900
)

type Viewport struct {
	margin int
	height int

	mu       sync.Mutex
	top      int
	watching map[domain.ElementID]watch
}

type watch struct {
	offset    int
	onVisible func()
}

var _ ports.VisibilityWatcher = (*Viewport)(nil)

func New(height, margin int) *Viewport {
	if height <= 0 {
		height = DefaultHeight
	}
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Viewport{
		margin:   margin,
		height:   height,
		watching: make(map[domain.ElementID]watch),
	}
}

// Observe fires onVisible right away when the element is already in range.
func (v *Viewport) Observe(id domain.ElementID, el domain.Element, onVisible func()) {
	v.mu.Lock()
	if v.inRangeLocked(el.Offset) {
		v.mu.Unlock()
		onVisible()
		return
	}
	v.watching[id] = watch{offset: el.Offset, onVisible: onVisible}
	v.mu.Unlock()
}

func (v *Viewport) Unobserve(id domain.ElementID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.watching, id)
}

// ScrollTo moves the top of the window to y and fires the elements that came
// into range, top to bottom.
func (v *Viewport) ScrollTo(y int) int {
	v.mu.Lock()
	v.top = max(y, 0)

	var hits []watch
	for id, w := range v.watching {
		if v.inRangeLocked(w.offset) {
			hits = append(hits, w)
			delete(v.watching, id)
		}
	}
	v.mu.Unlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })
	for _, w := range hits {
		w.onVisible()
	}
	return len(hits)
}

func (v *Viewport) Top() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

func (v *Viewport) Watching() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.watching)
}

func (v *Viewport) inRangeLocked(offset int) bool {
	return offset >= v.top-v.margin && offset <= v.top+v.height+v.margin
}
