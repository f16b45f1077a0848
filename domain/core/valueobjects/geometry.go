package valueobjects

import "math"

// Point is an integer position on the diagram canvas
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewPoint creates a point
func NewPoint(x, y int) Point {
	return Point{X: x, Y: y}
}

// Translate moves the point by the given offsets
func (p Point) Translate(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Center is the viewport center stored with a view
type Center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equals checks if two centers are equal
func (c Center) Equals(other Center) bool {
	const epsilon = 1e-9
	return math.Abs(c.X-other.X) < epsilon && math.Abs(c.Y-other.Y) < epsilon
}

// TruncateCoordinate converts a decimal coordinate to canvas units,
// truncating toward zero. It rejects NaN and infinities.
func TruncateCoordinate(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}
