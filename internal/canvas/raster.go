package canvas

import (
	"fmt"
	"io"
	"sync"

	"github.com/gogpu/gg"
	"github.com/golang/glog"
)

// Raster is a software-rendered Surface backed by a gg context. Its pixels
// can be written out as PNG at any time.
type Raster struct {
	mu sync.Mutex
	dc *gg.Context
}

// NewRaster creates a transparent width x height raster.
func NewRaster(width, height int) *Raster {
	return &Raster{dc: gg.NewContext(width, height)}
}

// Size implements Surface.
func (r *Raster) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.Width(), r.dc.Height()
}

// Clear implements Surface.
func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.ClearWithColor(gg.RGBA2(1, 1, 1, 1))
}

// Polyline implements Surface.
func (r *Raster) Polyline(path []Vec, width float64, stroke gg.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace(path, false)
	r.dc.SetColor(stroke.Color())
	r.dc.SetLineWidth(width)
	if err := r.dc.Stroke(); err != nil {
		glog.Warningf("[canvas] stroke failed: %v", err)
	}
}

// Polygon implements Surface.
func (r *Raster) Polygon(path []Vec, width float64, stroke, fill gg.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace(path, true)
	r.dc.SetColor(stroke.Color())
	r.dc.SetLineWidth(width)
	if err := r.dc.StrokePreserve(); err != nil {
		glog.Warningf("[canvas] stroke failed: %v", err)
	}
	r.dc.SetColor(fill.Color())
	if err := r.dc.Fill(); err != nil {
		glog.Warningf("[canvas] fill failed: %v", err)
	}
}

// Dot implements Surface.
func (r *Raster) Dot(at Vec, radius float64, fill gg.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.DrawCircle(at.X, at.Y, radius)
	r.dc.SetColor(fill.Color())
	if err := r.dc.Fill(); err != nil {
		glog.Warningf("[canvas] fill failed: %v", err)
	}
}

// EncodePNG writes the current pixels to w.
func (r *Raster) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// SavePNG writes the current pixels to path.
func (r *Raster) SavePNG(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save PNG to %s: %w", path, err)
	}
	return nil
}

// Close releases the drawing context.
func (r *Raster) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.Close()
}

func (r *Raster) trace(path []Vec, closed bool) {
	if len(path) == 0 {
		return
	}
	r.dc.MoveTo(path[0].X, path[0].Y)
	for _, v := range path[1:] {
		r.dc.LineTo(v.X, v.Y)
	}
	if closed {
		r.dc.ClosePath()
	}
}
