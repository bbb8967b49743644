// Package editor implements the collaborative editing session: the
// reconciliation of persisted, local and collaborative points, pointer input,
// rendering and saving.
package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/blueprints/internal/canvas"
	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Store persists saved snapshots. Create is used for blueprints that have
// never been saved, Update for the rest.
type Store interface {
	Create(ctx context.Context, bp *blueprint.Blueprint) error
	Update(ctx context.Context, bp *blueprint.Blueprint) error
}

// Option configures an Editor.
type Option func(*Editor)

// WithMargin sets the margin used when fitting drawings to the surface.
func WithMargin(margin float64) Option {
	return func(e *Editor) { e.margin = margin }
}

// WithOverlaySurface draws collaborative polygons onto surface instead of
// the blueprint surface.
func WithOverlaySurface(surface canvas.Surface) Option {
	return func(e *Editor) { e.overlaySurface = surface }
}

// Editor hands out editing sessions, at most one at a time.
type Editor struct {
	registry       *collab.Registry
	publisher      *collab.Publisher
	store          Store
	surface        canvas.Surface
	overlaySurface canvas.Surface
	margin         float64

	mu     sync.Mutex
	active *Session
}

// New creates an editor sharing the link managed by mgr.
func New(mgr *transport.Manager, store Store, surface canvas.Surface, opts ...Option) *Editor {
	e := &Editor{
		registry:  collab.NewRegistry(mgr),
		publisher: collab.NewPublisher(mgr),
		store:     store,
		surface:   surface,
		margin:    canvas.DefaultMargin,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.overlaySurface == nil {
		e.overlaySurface = surface
	}
	return e
}

// OpenOptions selects how a session is opened.
type OpenOptions struct {
	// New marks a blueprint that has never been saved. Saving it creates it.
	New bool

	// Overlay also follows the blueprint's polygon topic.
	Overlay bool
}

// Active returns the open session, nil when none.
func (e *Editor) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Open starts a session on bp. The session subscribes to the blueprint's
// point topic (and polygon topic when requested) before Open returns. On
// failure nothing stays subscribed and the editor stays free.
func (e *Editor) Open(ctx context.Context, bp *blueprint.Blueprint, opts OpenOptions) (*Session, error) {
	key := bp.Key()
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blueprint key: %w", err)
	}

	s := &Session{
		id:     uuid.NewString(),
		editor: e,
		key:    key,
		isNew:  opts.New,
	}
	s.state.Reset(bp.Points)

	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, ErrSessionActive
	}
	e.active = s
	e.mu.Unlock()

	s.mu.Lock()
	s.redrawLocked()
	s.mu.Unlock()

	sub, err := e.registry.SubscribePoints(ctx, key, s.onCollaborative)
	if err != nil {
		e.release(s)
		glog.Errorf("[editor] session %s failed to open %s: %v", s.id, key, err)
		return nil, err
	}

	var overlay *Overlay
	if opts.Overlay {
		overlay = NewOverlay(e.registry, e.overlaySurface, e.margin)
		if err := overlay.Retarget(ctx, key); err != nil {
			sub.Close()
			overlay.Close()
			e.release(s)
			glog.Errorf("[editor] session %s failed to open %s: %v", s.id, key, err)
			return nil, err
		}
	}

	s.mu.Lock()
	s.points = sub
	s.overlay = overlay
	s.mu.Unlock()

	glog.Infof("[editor] session %s opened %s (%d points, new=%t)", s.id, key, len(bp.Points), opts.New)
	return s, nil
}

func (e *Editor) release(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == s {
		e.active = nil
	}
}
