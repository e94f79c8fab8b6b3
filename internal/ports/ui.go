package ports

import "github.com/bnema/jellyfin-enrich/internal/domain"

// VisibilityWatcher reports when an element comes near the viewport. The
// callback fires at most once per Observe.
type VisibilityWatcher interface {
	Observe(id domain.ElementID, el domain.Element, onVisible func())
	Unobserve(id domain.ElementID)
}

type Renderer interface {
	Render(id domain.ElementID, el domain.Element, value string)
}

// FlushScheduler defers a persistence pass. Scheduling again before the pass
// runs replaces the pending one.
type FlushScheduler interface {
	Schedule(fn func())
	Cancel()
}
