package blueprint

import (
	"fmt"
	"math"
	"strings"
)

// Point is a model-space coordinate pair. Points are values: two points are
// the same point iff both coordinates are exactly equal.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Round returns p with both coordinates rounded to two decimal places, the
// canonical precision for every point in the system.
func (p Point) Round() Point {
	return Point{X: Round(p.X), Y: Round(p.Y)}
}

// Equal reports exact-value equality.
func (p Point) Equal(o Point) bool {
	return p.X == o.X && p.Y == o.Y
}

func (p Point) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// Round rounds v to two decimal places, half away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Key identifies a blueprint. Both parts are path segments of topics and REST
// routes and fields of ':'-separated Redis keys, so neither may be empty or
// contain a slash or a colon.
type Key struct {
	Author string `json:"author"`
	Name   string `json:"name"`
}

func (k Key) String() string {
	return k.Author + "/" + k.Name
}

// Validate checks both key parts.
func (k Key) Validate() error {
	if err := validateSegment("author", k.Author); err != nil {
		return err
	}
	return validateSegment("name", k.Name)
}

func validateSegment(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.ContainsAny(v, "/:") {
		return fmt.Errorf("%s %q cannot contain '/' or ':'", field, v)
	}
	return nil
}

// Blueprint is an authored, named polyline. Point order is significant.
type Blueprint struct {
	Author string  `json:"author"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Key returns the blueprint's composite key.
func (b *Blueprint) Key() Key {
	return Key{Author: b.Author, Name: b.Name}
}

// Validate checks the key and that every coordinate is a finite number.
func (b *Blueprint) Validate() error {
	if err := b.Key().Validate(); err != nil {
		return fmt.Errorf("invalid blueprint key: %w", err)
	}
	for i, p := range b.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("invalid point at index %d: coordinates must be finite", i)
		}
	}
	return nil
}

// Clone returns a deep copy; a nil point slice becomes an empty one so the
// wire form is always an array.
func (b *Blueprint) Clone() *Blueprint {
	c := &Blueprint{Author: b.Author, Name: b.Name, Points: make([]Point, len(b.Points))}
	copy(c.Points, b.Points)
	return c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
