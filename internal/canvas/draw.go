package canvas

import (
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/gogpu/gg"
)

// Palette used for blueprints and overlays.
var (
	LineColor        = gg.Hex("#3498db")
	FirstPointColor  = gg.Hex("#2ecc71")
	LatestPointColor = gg.Hex("#3498db")
	PointColor       = gg.Hex("#e74c3c")
	PolygonStroke    = gg.Hex("#9b59b6")
	PolygonFill      = gg.RGBA2(155.0/255, 89.0/255, 182.0/255, 0.2)
)

const (
	LineWidth = 2
	DotRadius = 3
)

// Surface is the drawing target of a session. Implementations must be safe
// for concurrent use.
type Surface interface {
	Size() (width, height int)
	Clear()
	Polyline(path []Vec, width float64, stroke gg.RGBA)
	Polygon(path []Vec, width float64, stroke, fill gg.RGBA)
	Dot(at Vec, radius float64, fill gg.RGBA)
}

// DrawBlueprint clears s and draws points as a polyline with a dot on every
// vertex: the first dot green, the last one blue while the blueprint has
// unsaved changes, every other dot red.
func DrawBlueprint(s Surface, t Transform, points []blueprint.Point, modified bool) {
	s.Clear()
	if len(points) == 0 {
		return
	}

	path := t.ForwardAll(points)
	s.Polyline(path, LineWidth, LineColor)
	for i, at := range path {
		s.Dot(at, DotRadius, dotColor(i, len(path), modified))
	}
}

func dotColor(i, n int, modified bool) gg.RGBA {
	switch {
	case i == 0:
		return FirstPointColor
	case i == n-1 && modified:
		return LatestPointColor
	default:
		return PointColor
	}
}

// DrawPolygon clears s and draws points as a closed filled shape fitted to
// its own bounding box. An empty polygon leaves s cleared. The fitted
// transform is returned.
func DrawPolygon(s Surface, points []blueprint.Point, margin float64) Transform {
	s.Clear()
	width, height := s.Size()
	t := Fit(points, width, height, margin)
	if len(points) == 0 {
		return t
	}
	s.Polygon(t.ForwardAll(points), LineWidth, PolygonStroke, PolygonFill)
	return t
}
