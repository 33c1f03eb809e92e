package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointDistances(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 3, Y: 4}

	assert.InDelta(t, 5.0, a.Dist(b), 1e-9)
	assert.Equal(t, 7, a.ManhattanDist(b))
	assert.Equal(t, 7, b.ManhattanDist(a))
	assert.Zero(t, a.Dist(a))
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "Low", PriorityLow.String())
	assert.Equal(t, "Normal", PriorityNormal.String())
	assert.Equal(t, "High", PriorityHigh.String())
	assert.Equal(t, "Emergency", PriorityEmergency.String())
	assert.True(t, PriorityEmergency > PriorityHigh)
}

func TestOverlapSquares(t *testing.T) {
	side := 50

	// Nearby centers: 50mm squares 10mm apart overlap.
	assert.True(t, OverlapSquares(Point{X: 200, Y: 200}, Point{X: 210, Y: 210}, side))

	// 60mm separation on both axes clears a 50mm footprint.
	assert.False(t, OverlapSquares(Point{X: 200, Y: 200}, Point{X: 260, Y: 260}, side))

	// Separated on one axis only is enough.
	assert.False(t, OverlapSquares(Point{X: 200, Y: 200}, Point{X: 260, Y: 200}, side))

	// Touching edges (separation exactly == side) does not overlap.
	assert.False(t, OverlapSquares(Point{X: 200, Y: 200}, Point{X: 250, Y: 200}, side))

	// Diagonal neighbors that a center-distance test would wrongly pass:
	// 45mm apart on each axis is ~64mm center distance but the squares
	// still overlap.
	assert.True(t, OverlapSquares(Point{X: 200, Y: 200}, Point{X: 245, Y: 245}, side))
}
