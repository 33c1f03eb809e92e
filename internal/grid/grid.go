// Package grid maintains ground-truth occupancy of the mat surface and
// computes safe routes over it.
//
// The mat is discretized into square cells. Each connected unit claims the
// cells within its safety radius; pathfinding and the target-safety check
// both read this occupancy, but guard different invariants: cell occupancy
// is a coarse passability test for search, while IsSafeToMove re-checks the
// precise world-coordinate distance because the grid is coarser than the
// physical safety margin.
package grid

import (
	"sync"
	"time"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// CellKind classifies a grid cell.
type CellKind int

const (
	// Free cells are traversable by any unit.
	Free CellKind = iota
	// Obstacle cells are statically blocked and never traversable.
	Obstacle
	// Occupied cells lie within a unit's current footprint.
	Occupied
	// Reserved cells lie within a footprint reserved as a move target.
	Reserved
)

func (k CellKind) String() string {
	return [...]string{"Free", "Obstacle", "Occupied", "Reserved"}[k]
}

// cell is one grid square. A cell's kind reflects at most one claiming unit
// at a time.
type cell struct {
	kind CellKind
	unit core.UnitID
	cost float64
}

// UnitState tracks one unit's presence on the grid. Created on the first
// position report, removed only on explicit disconnect.
type UnitState struct {
	ID           core.UnitID
	Pos          core.Cell  // current grid position
	WorldPos     core.Point // true reported position, pre-quantization
	Target       *core.Cell
	Path         []core.Cell
	Moving       bool
	LastUpdate   time.Time
	SafetyRadius int // world units; footprint half-edge
}

// Grid is the shared occupancy structure. All mutation happens under one
// lock; clear-then-mark sequences must not interleave between units.
type Grid struct {
	mu sync.RWMutex

	minX, minY int
	cellSize   int
	width      int
	height     int

	cells [][]cell
	units map[core.UnitID]*UnitState

	safetyRadius   int
	safetyDistance int
}

// New builds an empty grid covering the configured mat bounds.
func New(cfg *config.Config) *Grid {
	g := &Grid{
		minX:           cfg.MatMinX,
		minY:           cfg.MatMinY,
		cellSize:       cfg.CellSize,
		width:          (cfg.MatMaxX - cfg.MatMinX) / cfg.CellSize,
		height:         (cfg.MatMaxY - cfg.MatMinY) / cfg.CellSize,
		units:          make(map[core.UnitID]*UnitState),
		safetyRadius:   cfg.SafetyRadius,
		safetyDistance: cfg.SafetyDistance,
	}
	g.cells = make([][]cell, g.height)
	for y := range g.cells {
		row := make([]cell, g.width)
		for x := range row {
			row[x] = cell{kind: Free, cost: 1.0}
		}
		g.cells[y] = row
	}
	return g
}

// Size returns the grid dimensions in cells.
func (g *Grid) Size() (width, height int) {
	return g.width, g.height
}

// WorldToGrid maps a world coordinate to its containing cell, clamped to the
// grid bounds.
func (g *Grid) WorldToGrid(p core.Point) core.Cell {
	cx := (p.X - g.minX) / g.cellSize
	cy := (p.Y - g.minY) / g.cellSize
	return core.Cell{X: clamp(cx, 0, g.width-1), Y: clamp(cy, 0, g.height-1)}
}

// GridToWorld maps a cell to the world coordinate of its center. The inverse
// of WorldToGrid recovers the cell center, not the original point; the
// quantization is intentional.
func (g *Grid) GridToWorld(c core.Cell) core.Point {
	return core.Point{
		X: g.minX + c.X*g.cellSize + g.cellSize/2,
		Y: g.minY + c.Y*g.cellSize + g.cellSize/2,
	}
}

// SetObstacle marks the cell containing p as statically blocked.
func (g *Grid) SetObstacle(p core.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.WorldToGrid(p)
	g.cells[c.Y][c.X] = cell{kind: Obstacle, cost: 1.0}
}

// UpdatePosition records a unit's reported world position: its previous
// footprint is cleared, then the footprint around the new position is marked
// Occupied. The first report for an unknown unit creates its state.
func (g *Grid) UpdatePosition(id core.UnitID, p core.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos := g.WorldToGrid(p)
	st, ok := g.units[id]
	if ok {
		g.clearFootprint(id, st.Pos, st.SafetyRadius)
		st.Pos = pos
		st.WorldPos = p
		st.LastUpdate = time.Now()
	} else {
		st = &UnitState{
			ID:           id,
			Pos:          pos,
			WorldPos:     p,
			LastUpdate:   time.Now(),
			SafetyRadius: g.safetyRadius,
		}
		g.units[id] = st
	}
	g.markFootprint(id, pos, st.SafetyRadius)
}

// RemoveUnit clears a disconnected unit's occupancy, reservations and state.
func (g *Grid) RemoveUnit(id core.UnitID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.units[id]
	if !ok {
		return
	}
	g.clearFootprint(id, st.Pos, st.SafetyRadius)
	g.clearReservation(id)
	delete(g.units, id)
}

// SetMoving flags a unit as executing a move.
func (g *Grid) SetMoving(id core.UnitID, moving bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.units[id]; ok {
		st.Moving = moving
	}
}

// UnitPosition returns a unit's last reported world position.
func (g *Grid) UnitPosition(id core.UnitID) (core.Point, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.units[id]
	if !ok {
		return core.Point{}, false
	}
	return st.WorldPos, true
}

// IsSafeToMove reports whether id may be sent toward target. A Free cell, or
// one the unit itself claims, is safe. A cell occupied by another unit is
// still safe when the true world-coordinate distance to that unit exceeds
// the safety threshold; grid quantization alone would reject targets that
// are physically clear.
func (g *Grid) IsSafeToMove(id core.UnitID, target core.Point) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tc := g.WorldToGrid(target)
	c := g.cells[tc.Y][tc.X]
	switch c.kind {
	case Free:
		return true
	case Obstacle:
		return false
	case Reserved:
		return c.unit == id
	case Occupied:
		if c.unit == id {
			return true
		}
		other, ok := g.units[c.unit]
		if !ok {
			return true
		}
		return target.Dist(other.WorldPos) > float64(g.safetyDistance)
	}
	return false
}

// MarkReservation claims the footprint around a reserved target, so that
// safety checks see in-flight destinations. Only Free cells are claimed.
func (g *Grid) MarkReservation(id core.UnitID, target core.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	center := g.WorldToGrid(target)
	r := g.safetyRadius / g.cellSize
	g.eachFootprintCell(center, r, func(c *cell) {
		if c.kind == Free {
			c.kind = Reserved
			c.unit = id
		}
	})
}

// ClearReservation releases every cell reserved by id.
func (g *Grid) ClearReservation(id core.UnitID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearReservation(id)
}

func (g *Grid) clearReservation(id core.UnitID) {
	for y := range g.cells {
		for x := range g.cells[y] {
			c := &g.cells[y][x]
			if c.kind == Reserved && c.unit == id {
				c.kind = Free
				c.unit = ""
			}
		}
	}
}

// clearFootprint frees the cells claimed by id around pos. Callers hold the
// lock.
func (g *Grid) clearFootprint(id core.UnitID, pos core.Cell, radius int) {
	r := radius / g.cellSize
	g.eachFootprintCell(pos, r, func(c *cell) {
		if c.kind == Occupied && c.unit == id {
			c.kind = Free
			c.unit = ""
		}
	})
}

// markFootprint claims the Free cells around pos for id. Cells already held
// by another unit are left untouched, so occupancy sets never intersect.
func (g *Grid) markFootprint(id core.UnitID, pos core.Cell, radius int) {
	r := radius / g.cellSize
	g.eachFootprintCell(pos, r, func(c *cell) {
		if c.kind == Free {
			c.kind = Occupied
			c.unit = id
		}
	})
}

func (g *Grid) eachFootprintCell(pos core.Cell, r int, fn func(*cell)) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			x, y := pos.X+dx, pos.Y+dy
			if x >= 0 && x < g.width && y >= 0 && y < g.height {
				fn(&g.cells[y][x])
			}
		}
	}
}

// OccupiedCells returns the cells currently claimed by id. Intended for
// status reporting and tests.
func (g *Grid) OccupiedCells(id core.UnitID) []core.Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var cells []core.Cell
	for y := range g.cells {
		for x := range g.cells[y] {
			c := g.cells[y][x]
			if c.kind == Occupied && c.unit == id {
				cells = append(cells, core.Cell{X: x, Y: y})
			}
		}
	}
	return cells
}

// UnitStatus is one unit's entry in a status snapshot.
type UnitStatus struct {
	Position   core.Point
	Moving     bool
	PathLength int
	Age        time.Duration
}

// Status is a point-in-time snapshot of the grid.
type Status struct {
	Width, Height int
	CellSize      int
	Obstacles     int
	Units         map[core.UnitID]UnitStatus
}

// Snapshot returns the current grid status.
func (g *Grid) Snapshot() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Status{
		Width:    g.width,
		Height:   g.height,
		CellSize: g.cellSize,
		Units:    make(map[core.UnitID]UnitStatus, len(g.units)),
	}
	for y := range g.cells {
		for x := range g.cells[y] {
			if g.cells[y][x].kind == Obstacle {
				s.Obstacles++
			}
		}
	}
	now := time.Now()
	for id, st := range g.units {
		s.Units[id] = UnitStatus{
			Position:   st.WorldPos,
			Moving:     st.Moving,
			PathLength: len(st.Path),
			Age:        now.Sub(st.LastUpdate),
		}
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
