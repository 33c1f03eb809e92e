package grid

import (
	"container/heap"
	"math"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// pathNode is a transient A* search node, scoped to one PlanPath call.
type pathNode struct {
	cell   core.Cell
	g      float64 // cost so far
	f      float64 // g + heuristic
	parent *pathNode
	seq    int // insertion order, tie-break for equal f
	index  int // heap index
}

type pathHeap []*pathNode

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	// Equal f: pop in insertion order so expansion is deterministic per run.
	return h[i].seq < h[j].seq
}
func (h pathHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *pathHeap) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// neighborSteps enumerates the 8-connected moves with their base costs.
// Diagonal moves are weighted sqrt(2).
var neighborSteps = [8]struct {
	dx, dy int
	cost   float64
}{
	{-1, -1, math.Sqrt2}, {0, -1, 1}, {1, -1, math.Sqrt2},
	{-1, 0, 1}, {1, 0, 1},
	{-1, 1, math.Sqrt2}, {0, 1, 1}, {1, 1, math.Sqrt2},
}

// PlanPath computes a safe route for id from start to goal, both world
// coordinates, and returns it as world-coordinate waypoints (cell centers).
// The unit's own footprint is lifted for the duration of the search - a unit
// must be allowed to path through the space it already occupies - and
// restored before returning.
//
// An empty result means the goal is unreachable. That is a normal outcome,
// not an error; callers decide whether to retry or re-target.
func (g *Grid) PlanPath(id core.UnitID, start, goal core.Point) []core.Point {
	g.mu.Lock()
	defer g.mu.Unlock()

	startCell := g.WorldToGrid(start)
	goalCell := g.WorldToGrid(goal)

	st, known := g.units[id]
	if known {
		g.clearFootprint(id, st.Pos, st.SafetyRadius)
		defer g.markFootprint(id, st.Pos, st.SafetyRadius)
	}

	cells := g.search(id, startCell, goalCell)
	if cells == nil {
		return nil
	}

	if known {
		st.Path = cells
		gc := goalCell
		st.Target = &gc
	}

	path := make([]core.Point, len(cells))
	for i, c := range cells {
		path[i] = g.GridToWorld(c)
	}
	return path
}

// search runs A* over 8-connected neighbors with a Manhattan-distance
// heuristic. Callers hold the lock.
func (g *Grid) search(id core.UnitID, start, goal core.Cell) []core.Cell {
	open := &pathHeap{}
	heap.Init(open)
	seq := 0

	push := func(n *pathNode) {
		n.seq = seq
		seq++
		heap.Push(open, n)
	}

	push(&pathNode{cell: start, g: 0, f: float64(start.ManhattanDist(goal))})
	closed := make(map[core.Cell]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if closed[cur.cell] {
			continue
		}
		closed[cur.cell] = true

		if cur.cell == goal {
			return reconstruct(cur)
		}

		for _, step := range neighborSteps {
			next := core.Cell{X: cur.cell.X + step.dx, Y: cur.cell.Y + step.dy}
			if next.X < 0 || next.X >= g.width || next.Y < 0 || next.Y >= g.height {
				continue
			}
			if closed[next] {
				continue
			}
			c := g.cells[next.Y][next.X]
			if !passable(c, id) {
				continue
			}
			cost := cur.g + step.cost*c.cost
			push(&pathNode{
				cell:   next,
				g:      cost,
				f:      cost + float64(next.ManhattanDist(goal)),
				parent: cur,
			})
		}
	}
	return nil
}

// passable reports whether id may traverse a cell. Reserved cells are
// traversable: a reservation guards arrival at a target, not transit
// through it.
func passable(c cell, id core.UnitID) bool {
	switch c.kind {
	case Obstacle:
		return false
	case Occupied:
		return c.unit == id
	default:
		return true
	}
}

func reconstruct(n *pathNode) []core.Cell {
	var cells []core.Cell
	for ; n != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}
