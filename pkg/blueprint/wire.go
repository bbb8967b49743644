package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks a payload that does not have the expected shape.
var ErrMalformed = errors.New("malformed payload")

// wirePoint distinguishes an absent coordinate from a zero one.
type wirePoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (w wirePoint) point() (Point, error) {
	if w.X == nil || w.Y == nil {
		return Point{}, fmt.Errorf("%w: point requires both x and y", ErrMalformed)
	}
	p := Point{X: *w.X, Y: *w.Y}
	if !finite(p.X) || !finite(p.Y) {
		return Point{}, fmt.Errorf("%w: point coordinates must be finite", ErrMalformed)
	}
	return p, nil
}

// DecodePoint parses a single {"x","y"} object. Both coordinates are
// required.
func DecodePoint(data []byte) (Point, error) {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return w.point()
}

// DecodePolygon parses an array of points. An empty array is valid.
func DecodePolygon(data []byte) ([]Point, error) {
	var ws []wirePoint
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ws == nil {
		return nil, fmt.Errorf("%w: polygon must be an array", ErrMalformed)
	}

	points := make([]Point, 0, len(ws))
	for i, w := range ws {
		p, err := w.point()
		if err != nil {
			return nil, fmt.Errorf("polygon point %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// EncodePoint returns the wire form of p.
func EncodePoint(p Point) ([]byte, error) {
	return json.Marshal(p)
}

// EncodePolygon returns the wire form of points; nil encodes as [].
func EncodePolygon(points []Point) ([]byte, error) {
	if points == nil {
		points = []Point{}
	}
	return json.Marshal(points)
}
