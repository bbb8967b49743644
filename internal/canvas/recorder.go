package canvas

import (
	"sync"

	"github.com/gogpu/gg"
)

// OpKind names a recorded drawing call.
type OpKind string

const (
	OpClear    OpKind = "clear"
	OpPolyline OpKind = "polyline"
	OpPolygon  OpKind = "polygon"
	OpDot      OpKind = "dot"
)

// Op is one drawing call captured by a Recorder.
type Op struct {
	Kind   OpKind
	Path   []Vec
	Width  float64
	Stroke gg.RGBA
	Fill   gg.RGBA
}

// Recorder is a Surface that keeps the drawing calls since the last Clear
// instead of rasterizing them. Used for headless sessions.
type Recorder struct {
	width, height int

	mu     sync.Mutex
	ops    []Op
	clears int
}

// NewRecorder creates a recorder reporting the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Size() (int, int) { return r.width, r.height }

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.clears++
}

func (r *Recorder) Polyline(path []Vec, width float64, stroke gg.RGBA) {
	r.record(Op{Kind: OpPolyline, Path: append([]Vec(nil), path...), Width: width, Stroke: stroke})
}

func (r *Recorder) Polygon(path []Vec, width float64, stroke, fill gg.RGBA) {
	r.record(Op{Kind: OpPolygon, Path: append([]Vec(nil), path...), Width: width, Stroke: stroke, Fill: fill})
}

func (r *Recorder) Dot(at Vec, radius float64, fill gg.RGBA) {
	r.record(Op{Kind: OpDot, Path: []Vec{at}, Width: radius, Fill: fill})
}

// Ops returns the calls recorded since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Clears returns how many times the surface was cleared.
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

// Dots returns the fill colors of the recorded dots in drawing order.
func (r *Recorder) Dots() []gg.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []gg.RGBA
	for _, op := range r.ops {
		if op.Kind == OpDot {
			out = append(out, op.Fill)
		}
	}
	return out
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}
