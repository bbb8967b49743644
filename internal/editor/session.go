package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/dyluth/blueprints/internal/canvas"
	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// PointerKind is the kind of a pointer input event.
type PointerKind string

const (
	PointerDown PointerKind = "pointerdown"
	TouchStart  PointerKind = "touchstart"
	PointerMove PointerKind = "pointermove"
	PointerUp   PointerKind = "pointerup"
)

// PointerEvent is a pointer or touch position in surface coordinates.
type PointerEvent struct {
	X, Y float64
	Kind PointerKind
}

// Session is the editing state of one open blueprint. All methods are safe
// for concurrent use with the delivery of collaborative points.
type Session struct {
	id     string
	editor *Editor
	key    blueprint.Key

	mu        sync.Mutex
	isNew     bool
	state     State
	echo      collab.EchoSuppressor
	transform canvas.Transform
	points    *collab.Subscription
	overlay   *Overlay
	closed    bool
}

// ID returns the session id used in logs.
func (s *Session) ID() string { return s.id }

// Key returns the blueprint being edited.
func (s *Session) Key() blueprint.Key { return s.key }

// HandlePointer turns a pointer-down or touch-start into a new local point:
// the position is mapped back to model space, added locally, marked as sent
// and published. Other kinds are ignored and report false. A publish failure
// is returned but the local point is kept.
func (s *Session) HandlePointer(ctx context.Context, ev PointerEvent) (blueprint.Point, bool, error) {
	if ev.Kind != PointerDown && ev.Kind != TouchStart {
		return blueprint.Point{}, false, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return blueprint.Point{}, false, ErrSessionClosed
	}
	p := s.transform.Inverse(canvas.Vec{X: ev.X, Y: ev.Y})
	s.state.AddLocal(p)
	s.echo.MarkSent(p)
	s.redrawLocked()
	s.mu.Unlock()

	if err := s.editor.publisher.Publish(ctx, s.key, p); err != nil {
		glog.Warningf("[editor] session %s: %v", s.id, err)
		return p, true, err
	}
	return p, true, nil
}

// Undo removes the most recent local point. It reports whether anything was
// removed.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.state.UndoLastLocal() {
		return false
	}
	s.redrawLocked()
	return true
}

// Discard drops every unsaved point. The echo marker is kept: a discarded
// point may still be in flight and its echo must not come back as a
// collaborative point.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.Discard()
	s.redrawLocked()
}

// Save persists persisted ++ local ++ collaborative. A new blueprint is
// created, an existing one updated. On success the snapshot becomes the
// persisted state.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.saveLocked(ctx)
}

// Points returns the points in draw order.
func (s *Session) Points() []blueprint.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Points()
}

// Snapshot returns the points a save would send.
func (s *Session) Snapshot() []blueprint.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SnapshotForSave()
}

// Modified reports whether there are unsaved points.
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Modified()
}

// Counts returns the persisted, local and collaborative buffer sizes.
func (s *Session) Counts() (persisted, local, collaborative int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Counts()
}

// Transform returns the transform of the last redraw.
func (s *Session) Transform() canvas.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

// Overlay returns the polygon overlay, nil when the session was opened
// without one.
func (s *Session) Overlay() *Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay
}

// Close ends the session: all topics are unsubscribed first, then the
// snapshot is saved when save is set and there are unsaved points, then the
// editor is released for the next session. The editor is released even when
// the save fails. Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context, save bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	points, overlay := s.points, s.overlay
	s.points, s.overlay = nil, nil
	s.mu.Unlock()

	if points != nil {
		points.Close()
	}
	if overlay != nil {
		overlay.Close()
	}

	var err error
	s.mu.Lock()
	if save && s.state.Modified() {
		err = s.saveLocked(ctx)
	}
	s.mu.Unlock()

	s.editor.release(s)
	glog.Infof("[editor] session %s closed %s", s.id, s.key)
	return err
}

func (s *Session) onCollaborative(p blueprint.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.echo.ShouldSuppress(p) {
		glog.V(2).Infof("[editor] session %s suppressed echo %s", s.id, p)
		return
	}
	if !s.state.AddCollaborative(p) {
		glog.V(2).Infof("[editor] session %s ignored duplicate %s", s.id, p)
		return
	}
	s.redrawLocked()
}

func (s *Session) saveLocked(ctx context.Context) error {
	bp := &blueprint.Blueprint{
		Author: s.key.Author,
		Name:   s.key.Name,
		Points: s.state.SnapshotForSave(),
	}
	if err := bp.Validate(); err != nil {
		return &SaveError{Key: s.key, Err: err}
	}

	store := s.editor.store
	if store == nil {
		return &SaveError{Key: s.key, Err: errors.New("no store configured")}
	}

	var err error
	if s.isNew {
		err = store.Create(ctx, bp)
	} else {
		err = store.Update(ctx, bp)
	}
	if err != nil {
		glog.Errorf("[editor] session %s failed to save %s: %v", s.id, s.key, err)
		return &SaveError{Key: s.key, Err: err}
	}

	s.isNew = false
	s.state.Reset(bp.Points)
	s.redrawLocked()
	glog.Infof("[editor] session %s saved %s (%d points)", s.id, s.key, len(bp.Points))
	return nil
}

func (s *Session) redrawLocked() {
	surface := s.editor.surface
	if s.isNew && s.state.Empty() {
		s.transform = canvas.Identity()
	} else {
		width, height := surface.Size()
		s.transform = canvas.Fit(s.state.Points(), width, height, s.editor.margin)
	}
	canvas.DrawBlueprint(surface, s.transform, s.state.Points(), s.state.Modified())
}
