// Package core defines shared value types for fleet motion planning.
package core

import "math"

// UnitID identifies a physical unit on the mat.
type UnitID string

// Point is a world coordinate on the mat surface, in millimeters.
type Point struct {
	X, Y int
}

// Dist returns the Euclidean distance to q.
func (p Point) Dist(q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ManhattanDist returns the Manhattan distance to q.
func (p Point) ManhattanDist(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Cell is a discrete grid coordinate. Comparable, usable as a map key.
type Cell struct {
	X, Y int
}

// ManhattanDist returns the Manhattan distance to d in cells.
func (c Cell) ManhattanDist(d Cell) int {
	return abs(c.X-d.X) + abs(c.Y-d.Y)
}

// Priority orders path requests.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityEmergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// OverlapSquares reports whether two axis-aligned squares of the given side
// length, centered at a and b, overlap. Physical unit footprints are square,
// so this is the overlap test for target reservations; center-distance
// approximations under-reject on the diagonals.
func OverlapSquares(a, b Point, side int) bool {
	return abs(a.X-b.X) < side && abs(a.Y-b.Y) < side
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
