package editor

import "github.com/dyluth/blueprints/pkg/blueprint"

// State reconciles the three point buffers of an open blueprint: the points
// last persisted, points added locally and points received from other
// clients. A point value is held in at most one buffer.
//
// State is not safe for concurrent use; Session serializes access.
type State struct {
	persisted []blueprint.Point
	additions []addition // local and collaborative, in arrival order
}

type addition struct {
	point blueprint.Point
	local bool
}

// Reset replaces the persisted buffer with snapshot and drops all additions.
func (s *State) Reset(snapshot []blueprint.Point) {
	s.persisted = append([]blueprint.Point(nil), snapshot...)
	s.additions = nil
}

// AddLocal appends a point added by this client.
func (s *State) AddLocal(p blueprint.Point) {
	s.additions = append(s.additions, addition{point: p, local: true})
}

// AddCollaborative appends a point received from another client. It is
// rejected when the value is already present in any buffer.
func (s *State) AddCollaborative(p blueprint.Point) bool {
	if s.contains(p) {
		return false
	}
	s.additions = append(s.additions, addition{point: p})
	return true
}

// UndoLastLocal removes the most recent local addition. Persisted and
// collaborative points are never undone.
func (s *State) UndoLastLocal() bool {
	for i := len(s.additions) - 1; i >= 0; i-- {
		if s.additions[i].local {
			s.additions = append(s.additions[:i], s.additions[i+1:]...)
			return true
		}
	}
	return false
}

// Discard drops every unsaved addition and keeps the persisted points.
func (s *State) Discard() {
	s.additions = nil
}

// SnapshotForSave returns persisted ++ local ++ collaborative, the exact
// points array sent to the store. Arrival interleaving of local and
// collaborative points is not preserved.
func (s *State) SnapshotForSave() []blueprint.Point {
	out := make([]blueprint.Point, 0, len(s.persisted)+len(s.additions))
	out = append(out, s.persisted...)
	for _, a := range s.additions {
		if a.local {
			out = append(out, a.point)
		}
	}
	for _, a := range s.additions {
		if !a.local {
			out = append(out, a.point)
		}
	}
	return out
}

// Points returns the draw order: persisted points, then additions in
// arrival order.
func (s *State) Points() []blueprint.Point {
	out := make([]blueprint.Point, 0, len(s.persisted)+len(s.additions))
	out = append(out, s.persisted...)
	for _, a := range s.additions {
		out = append(out, a.point)
	}
	return out
}

// Modified reports whether there are unsaved additions.
func (s *State) Modified() bool {
	return len(s.additions) > 0
}

// Counts returns the size of each buffer.
func (s *State) Counts() (persisted, local, collaborative int) {
	for _, a := range s.additions {
		if a.local {
			local++
		} else {
			collaborative++
		}
	}
	return len(s.persisted), local, collaborative
}

// Empty reports whether there is nothing to draw.
func (s *State) Empty() bool {
	return len(s.persisted) == 0 && len(s.additions) == 0
}

func (s *State) contains(p blueprint.Point) bool {
	for _, q := range s.persisted {
		if q.Equal(p) {
			return true
		}
	}
	for _, a := range s.additions {
		if a.point.Equal(p) {
			return true
		}
	}
	return false
}
