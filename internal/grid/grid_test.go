package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// testConfig mirrors the reference deployment: 45-455mm mat, 10mm cells,
// 50mm footprints.
func testConfig() *config.Config {
	return &config.Config{
		MatMinX: 45, MatMaxX: 455,
		MatMinY: 45, MatMaxY: 455,
		CellSize:       10,
		FootprintSide:  50,
		SafetyRadius:   25,
		SafetyDistance: 50,
	}
}

func TestWorldGridRoundTrip(t *testing.T) {
	g := New(testConfig())

	p := core.Point{X: 103, Y: 87}
	c := g.WorldToGrid(p)
	center := g.GridToWorld(c)

	// The inverse recovers the cell center, not the original point.
	assert.Equal(t, core.Point{X: 100, Y: 90}, center)

	// Idempotent under repeated application.
	assert.Equal(t, c, g.WorldToGrid(center))
	assert.Equal(t, center, g.GridToWorld(g.WorldToGrid(center)))
}

func TestWorldToGridClamping(t *testing.T) {
	g := New(testConfig())
	w, h := g.Size()

	assert.Equal(t, core.Cell{X: 0, Y: 0}, g.WorldToGrid(core.Point{X: -100, Y: 0}))
	assert.Equal(t, core.Cell{X: w - 1, Y: h - 1}, g.WorldToGrid(core.Point{X: 9999, Y: 9999}))
}

func TestOccupancyInvariant(t *testing.T) {
	g := New(testConfig())

	// Repeated updates, including units brushing against each other: no two
	// units may ever claim the same cell.
	moves := []struct {
		id core.UnitID
		p  core.Point
	}{
		{"a", core.Point{X: 100, Y: 100}},
		{"b", core.Point{X: 130, Y: 100}},
		{"c", core.Point{X: 100, Y: 140}},
		{"a", core.Point{X: 110, Y: 100}},
		{"b", core.Point{X: 120, Y: 110}},
		{"a", core.Point{X: 250, Y: 250}},
		{"c", core.Point{X: 110, Y: 120}},
	}
	for _, m := range moves {
		g.UpdatePosition(m.id, m.p)

		seen := make(map[core.Cell]core.UnitID)
		for _, id := range []core.UnitID{"a", "b", "c"} {
			for _, c := range g.OccupiedCells(id) {
				owner, dup := seen[c]
				require.False(t, dup, "cell %v claimed by both %s and %s", c, owner, id)
				seen[c] = id
			}
		}
	}
}

func TestRemoveUnitClearsOccupancy(t *testing.T) {
	g := New(testConfig())

	g.UpdatePosition("a", core.Point{X: 200, Y: 200})
	require.NotEmpty(t, g.OccupiedCells("a"))

	g.RemoveUnit("a")
	assert.Empty(t, g.OccupiedCells("a"))
	_, ok := g.UnitPosition("a")
	assert.False(t, ok)
}

func TestPlanPathAcrossEmptyMat(t *testing.T) {
	g := New(testConfig())
	g.UpdatePosition("a", core.Point{X: 100, Y: 100})

	path := g.PlanPath("a", core.Point{X: 100, Y: 100}, core.Point{X: 400, Y: 400})
	require.NotEmpty(t, path)

	// Last waypoint lands within one cell of the goal.
	last := path[len(path)-1]
	assert.LessOrEqual(t, last.Dist(core.Point{X: 400, Y: 400}), float64(testConfig().CellSize))

	// Every waypoint stays on the mat.
	for _, wp := range path {
		assert.GreaterOrEqual(t, wp.X, 45)
		assert.LessOrEqual(t, wp.X, 455)
		assert.GreaterOrEqual(t, wp.Y, 45)
		assert.LessOrEqual(t, wp.Y, 455)
	}
}

func TestPlanPathNoObstacleShortcut(t *testing.T) {
	g := New(testConfig())

	// With nothing else on the mat, any in-bounds pair is connected.
	pairs := [][2]core.Point{
		{{X: 50, Y: 50}, {X: 450, Y: 450}},
		{{X: 450, Y: 50}, {X: 50, Y: 450}},
		{{X: 250, Y: 250}, {X: 250, Y: 260}},
	}
	for _, pair := range pairs {
		path := g.PlanPath("solo", pair[0], pair[1])
		assert.NotEmpty(t, path, "no path from %v to %v", pair[0], pair[1])
	}
}

func TestPlanPathBlockedIsEmptyNotError(t *testing.T) {
	g := New(testConfig())

	// Wall the full height of the mat at x=250.
	for y := 45; y <= 455; y += 10 {
		g.SetObstacle(core.Point{X: 250, Y: y})
	}

	path := g.PlanPath("a", core.Point{X: 100, Y: 100}, core.Point{X: 400, Y: 400})
	assert.Empty(t, path)
}

func TestPlanPathAvoidsObstaclesAndUnits(t *testing.T) {
	g := New(testConfig())

	// Partial wall with a gap near the bottom.
	for y := 145; y <= 455; y += 10 {
		g.SetObstacle(core.Point{X: 250, Y: y})
	}
	g.UpdatePosition("a", core.Point{X: 100, Y: 300})
	g.UpdatePosition("b", core.Point{X: 300, Y: 300})

	path := g.PlanPath("a", core.Point{X: 100, Y: 300}, core.Point{X: 400, Y: 300})
	require.NotEmpty(t, path)

	blocked := make(map[core.Cell]bool)
	for _, c := range g.OccupiedCells("b") {
		blocked[c] = true
	}
	for _, wp := range path {
		c := g.WorldToGrid(wp)
		assert.False(t, blocked[c], "waypoint %v crosses b's footprint", wp)
	}
}

func TestPlanPathThroughOwnFootprint(t *testing.T) {
	g := New(testConfig())
	g.UpdatePosition("a", core.Point{X: 100, Y: 100})

	// The start cell is inside a's own footprint; the search must lift it.
	path := g.PlanPath("a", core.Point{X: 100, Y: 100}, core.Point{X: 160, Y: 100})
	require.NotEmpty(t, path)

	// Occupancy is restored after planning.
	assert.NotEmpty(t, g.OccupiedCells("a"))
}

func TestIsSafeToMove(t *testing.T) {
	t.Run("free target", func(t *testing.T) {
		g := New(testConfig())
		g.UpdatePosition("a", core.Point{X: 100, Y: 100})
		assert.True(t, g.IsSafeToMove("a", core.Point{X: 400, Y: 400}))
	})

	t.Run("own footprint", func(t *testing.T) {
		g := New(testConfig())
		g.UpdatePosition("a", core.Point{X: 100, Y: 100})
		assert.True(t, g.IsSafeToMove("a", core.Point{X: 105, Y: 105}))
	})

	t.Run("obstacle", func(t *testing.T) {
		g := New(testConfig())
		g.SetObstacle(core.Point{X: 200, Y: 200})
		assert.False(t, g.IsSafeToMove("a", core.Point{X: 202, Y: 202}))
	})

	t.Run("other unit within safety distance", func(t *testing.T) {
		g := New(testConfig())
		g.UpdatePosition("b", core.Point{X: 200, Y: 200})
		// (210,210) quantizes into b's footprint and is only ~14mm away.
		assert.False(t, g.IsSafeToMove("a", core.Point{X: 210, Y: 210}))
	})

	t.Run("other unit beyond safety distance", func(t *testing.T) {
		// With a tighter threshold the same occupied cell is fine: the true
		// world distance decides, not the quantized cell.
		cfg := testConfig()
		cfg.SafetyDistance = 10
		g := New(cfg)
		g.UpdatePosition("b", core.Point{X: 200, Y: 200})
		assert.True(t, g.IsSafeToMove("a", core.Point{X: 215, Y: 215}))
	})
}

func TestReservationMarks(t *testing.T) {
	g := New(testConfig())

	g.MarkReservation("a", core.Point{X: 300, Y: 300})
	// A reserved target is unsafe for everyone but the holder.
	assert.False(t, g.IsSafeToMove("b", core.Point{X: 300, Y: 300}))
	assert.True(t, g.IsSafeToMove("a", core.Point{X: 300, Y: 300}))

	// Reserved cells do not block transit for other units.
	path := g.PlanPath("b", core.Point{X: 100, Y: 300}, core.Point{X: 450, Y: 300})
	assert.NotEmpty(t, path)

	g.ClearReservation("a")
	assert.True(t, g.IsSafeToMove("b", core.Point{X: 300, Y: 300}))
}

func TestSnapshot(t *testing.T) {
	g := New(testConfig())
	g.UpdatePosition("a", core.Point{X: 100, Y: 100})
	g.SetObstacle(core.Point{X: 400, Y: 400})
	g.SetMoving("a", true)

	s := g.Snapshot()
	assert.Equal(t, 41, s.Width)
	assert.Equal(t, 41, s.Height)
	assert.Equal(t, 1, s.Obstacles)
	require.Contains(t, s.Units, core.UnitID("a"))
	assert.True(t, s.Units["a"].Moving)
	assert.Equal(t, core.Point{X: 100, Y: 100}, s.Units["a"].Position)
}
