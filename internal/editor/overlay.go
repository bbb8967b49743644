package editor

import (
	"context"
	"sync"

	"github.com/dyluth/blueprints/internal/canvas"
	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// Overlay follows the polygon topic of one blueprint and renders the latest
// polygon onto its surface. Each message replaces the previous overlay.
type Overlay struct {
	registry *collab.Registry
	surface  canvas.Surface
	margin   float64

	mu     sync.Mutex
	key    blueprint.Key
	sub    *collab.Subscription
	gen    uint64
	points []blueprint.Point
	closed bool
}

// NewOverlay creates an idle overlay drawing onto surface.
func NewOverlay(registry *collab.Registry, surface canvas.Surface, margin float64) *Overlay {
	return &Overlay{registry: registry, surface: surface, margin: margin}
}

// Retarget follows the polygon topic of key. Switching to a different
// blueprint drops the current overlay and unsubscribes from the old topic;
// retargeting to the followed blueprint is a no-op.
func (o *Overlay) Retarget(ctx context.Context, key blueprint.Key) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	if o.sub != nil && o.key == key {
		o.mu.Unlock()
		return nil
	}
	old := o.sub
	o.sub = nil
	o.gen++
	gen := o.gen
	o.key = key
	o.points = nil
	o.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sub, err := o.registry.SubscribePolygons(ctx, key, func(points []blueprint.Point) {
		o.apply(gen, points)
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed || o.gen != gen {
		o.mu.Unlock()
		sub.Close()
		return nil
	}
	o.sub = sub
	o.mu.Unlock()
	return nil
}

// Points returns the polygon currently shown, nil when none.
func (o *Overlay) Points() []blueprint.Point {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]blueprint.Point(nil), o.points...)
}

// Close unsubscribes. Safe to call repeatedly.
func (o *Overlay) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.gen++
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (o *Overlay) apply(gen uint64, points []blueprint.Point) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.gen != gen {
		return
	}
	if len(points) == 0 {
		o.points = nil
	} else {
		o.points = points
	}
	canvas.DrawPolygon(o.surface, points, o.margin)
	glog.V(2).Infof("[editor] overlay for %s now has %d points", o.key, len(points))
}
