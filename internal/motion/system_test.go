package motion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
)

func TestSystemEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.TrackerInterval = 10 * time.Millisecond
	cfg.PlannerInterval = 10 * time.Millisecond

	fleet := device.NewSimFleet(2000)
	fleet.AddUnit("a", core.Point{X: 100, Y: 100})
	fleet.AddUnit("b", core.Point{X: 400, Y: 400})

	sys := NewSystem(fleet, fleet, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.Start(ctx)
	defer sys.Stop()

	// The tracker picks both units up from telemetry.
	require.Eventually(t, func() bool {
		_, okA := sys.Tracker.CurrentPosition("a")
		_, okB := sys.Tracker.CurrentPosition("b")
		return okA && okB
	}, time.Second, 5*time.Millisecond)

	// Accepted updates flow through to grid occupancy.
	require.Eventually(t, func() bool {
		return len(sys.Grid.OccupiedCells("a")) > 0
	}, time.Second, 5*time.Millisecond)

	ok := sys.Mover.SafeMove(ctx, "a", 400, 100, 0)
	require.True(t, ok)

	p, _ := fleet.Position("a")
	assert.Equal(t, core.Point{X: 400, Y: 100}, p)

	// The tracker and grid catch up with the physical arrival.
	require.Eventually(t, func() bool {
		cur, ok := sys.Tracker.CurrentPosition("a")
		return ok && cur == core.Point{X: 400, Y: 100}
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, sys.Mover.Reservations())
}

func TestSystemDisconnect(t *testing.T) {
	cfg := testConfig()
	cfg.TrackerInterval = 10 * time.Millisecond
	cfg.PlannerInterval = 10 * time.Millisecond

	fleet := device.NewSimFleet(2000)
	fleet.AddUnit("a", core.Point{X: 100, Y: 100})
	fleet.AddUnit("b", core.Point{X: 300, Y: 300})

	sys := NewSystem(fleet, fleet, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys.Start(ctx)
	defer sys.Stop()

	require.Eventually(t, func() bool {
		return len(sys.Grid.OccupiedCells("b")) > 0
	}, time.Second, 5*time.Millisecond)

	// Stop feeding b to the system before erasing it, as a real disconnect
	// handler would.
	fleet.RemoveUnit("b")
	sys.Disconnect("b")

	assert.Empty(t, sys.Grid.OccupiedCells("b"))
	_, ok := sys.Tracker.CurrentPosition("b")
	assert.False(t, ok)

	// a is unaffected.
	_, ok = sys.Tracker.CurrentPosition("a")
	assert.True(t, ok)
}
