package services

import "inventory/domain/core/valueobjects"

// DefaultLayoutStep is the horizontal distance between two placed nodes
const DefaultLayoutStep = 100

// RowLayout places nodes left to right on a single row
type RowLayout struct {
	Origin valueobjects.Point
	Step   int
}

// NewRowLayout returns the default layout: origin (0,0), step 100
func NewRowLayout() RowLayout {
	return RowLayout{Step: DefaultLayoutStep}
}

// Positions returns n positions in placement order
func (l RowLayout) Positions(n int) []valueobjects.Point {
	step := l.Step
	if step <= 0 {
		step = DefaultLayoutStep
	}
	points := make([]valueobjects.Point, n)
	for i := range points {
		points[i] = l.Origin.Translate(i*step, 0)
	}
	return points
}
