// Package canvas maps blueprint model coordinates onto a drawing surface and
// renders blueprints and collaborative polygons.
package canvas

import (
	"math"

	"github.com/dyluth/blueprints/pkg/blueprint"
)

// DefaultMargin is the padding kept between a fitted drawing and the surface
// edge.
const DefaultMargin = 10

// Vec is a surface coordinate.
type Vec struct {
	X, Y float64
}

// Transform is a uniform scale plus offset between model space and surface
// space.
type Transform struct {
	MinX   float64
	MinY   float64
	Scale  float64
	Margin float64
}

// Identity maps model coordinates onto the surface unchanged.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Fit returns the transform that fits the bounding box of points inside a
// width x height surface, keeping margin on every side. A zero extent on an
// axis is treated as 1. With no points only the margin is applied.
func Fit(points []blueprint.Point, width, height int, margin float64) Transform {
	if len(points) == 0 {
		return Transform{Scale: 1, Margin: margin}
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	scale := math.Min(
		(float64(width)-2*margin)/extent(maxX-minX),
		(float64(height)-2*margin)/extent(maxY-minY),
	)
	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	return Transform{MinX: minX, MinY: minY, Scale: scale, Margin: margin}
}

func extent(d float64) float64 {
	if d == 0 {
		return 1
	}
	return d
}

// Forward maps a model point onto the surface.
func (t Transform) Forward(p blueprint.Point) Vec {
	return Vec{
		X: (p.X-t.MinX)*t.Scale + t.Margin,
		Y: (p.Y-t.MinY)*t.Scale + t.Margin,
	}
}

// Inverse maps a surface position back to model space, rounded to the
// canonical two decimal places.
func (t Transform) Inverse(v Vec) blueprint.Point {
	return blueprint.Point{
		X: (v.X-t.Margin)/t.Scale + t.MinX,
		Y: (v.Y-t.Margin)/t.Scale + t.MinY,
	}.Round()
}

// ForwardAll maps every point.
func (t Transform) ForwardAll(points []blueprint.Point) []Vec {
	out := make([]Vec, len(points))
	for i, p := range points {
		out[i] = t.Forward(p)
	}
	return out
}
