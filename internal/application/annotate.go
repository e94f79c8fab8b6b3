package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const (
	defaultRowHeight  = 150
	defaultScrollStep = 600
)

// Viewport is a visibility watcher the caller can scroll.
type Viewport interface {
	ports.VisibilityWatcher
	ScrollTo(y int) int
}

type AnnotateRequest struct {
	ItemIDs   []string
	Attribute Attribute
	Viewport  Viewport
	// Prime lists items already fetched, so their values need no lookup.
	Prime      []domain.Item
	RowHeight  int
	ScrollStep int
	Progress   func(pipeline.Stats)
}

type collector struct {
	mu     sync.Mutex
	values map[domain.ElementID]string
}

var _ ports.Renderer = (*collector)(nil)

func (c *collector) Render(id domain.ElementID, _ domain.Element, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = value
}

func (c *collector) value(id domain.ElementID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[id]
}

// Annotate lays the items out as rows, scrolls through them and returns the
// value rendered on each row. Rows nothing could be derived for keep an
// empty value.
func (s *Service) Annotate(ctx context.Context, req AnnotateRequest) ([]Annotation, pipeline.Stats, error) {
	if !s.identity.WaitUntilReady(ctx, s.readyWait) {
		return nil, pipeline.Stats{}, fmt.Errorf("annotate: %w", domain.ErrAuthNotReady)
	}
	if req.Viewport == nil {
		return nil, pipeline.Stats{}, fmt.Errorf("annotate: viewport is required")
	}

	deriver, cache, err := s.attributeSource(req.Attribute)
	if err != nil {
		return nil, pipeline.Stats{}, err
	}

	rowHeight := req.RowHeight
	if rowHeight <= 0 {
		rowHeight = defaultRowHeight
	}
	step := req.ScrollStep
	if step <= 0 {
		step = defaultScrollStep
	}

	out := &collector{values: make(map[domain.ElementID]string)}
	deps := pipeline.Deps{
		Watcher:  req.Viewport,
		Renderer: out,
		Items:    s.catalog,
		Deriver:  deriver,
		Logger:   s.logger,
	}
	if cache != nil {
		deps.Cache = cache
	}
	p, err := pipeline.New(s.pipelineCfg, deps)
	if err != nil {
		return nil, pipeline.Stats{}, fmt.Errorf("build pipeline: %w", err)
	}
	untrack := s.track(p)
	defer untrack()

	p.Prime(req.Prime)
	p.Start(ctx)
	defer p.Stop()

	ids := make([]domain.ElementID, len(req.ItemIDs))
	for i, itemID := range req.ItemIDs {
		ids[i] = p.Register(domain.Element{ItemID: itemID, Offset: i * rowHeight})
	}

	bottom := len(req.ItemIDs) * rowHeight
	for y := 0; ; y += step {
		req.Viewport.ScrollTo(y)
		if err := p.WaitIdle(ctx); err != nil {
			return nil, p.Stats(), fmt.Errorf("annotate: %w", err)
		}
		if req.Progress != nil {
			req.Progress(p.Stats())
		}
		if y >= bottom {
			break
		}
	}

	annotations := make([]Annotation, len(ids))
	for i, id := range ids {
		annotations[i] = Annotation{ItemID: req.ItemIDs[i], Value: out.value(id)}
	}
	return annotations, p.Stats(), nil
}

func (s *Service) attributeSource(attr Attribute) (pipeline.Deriver, AttributeCache, error) {
	switch attr {
	case AttributeQuality, "":
		return pipeline.QualityDeriver{}, s.cache, nil
	case AttributeGenre:
		return pipeline.GenreDeriver{}, s.sessionCache, nil
	default:
		return nil, nil, fmt.Errorf("unknown attribute %q", attr)
	}
}
