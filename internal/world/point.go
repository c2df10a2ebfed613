// Package world provides the continuous strategic map: positions, distances,
// a uniform grid index, and procedural settlement placement.
package world

import (
	"fmt"
	"math"
)

// Point is a position on the strategic map in distance units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Within reports whether b lies within radius of a. The boundary is inclusive.
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// Lerp moves from a toward b by fraction t (0 = a, 1 = b).
func Lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// String returns "(x, y)".
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}
