package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

func TestMoveToArrives(t *testing.T) {
	f := NewSimFleet(1000)
	f.AddUnit("a", core.Point{X: 100, Y: 100})

	err := f.MoveTo(context.Background(), "a", 150, 100, 0)
	require.NoError(t, err)

	p, ok := f.Position("a")
	require.True(t, ok)
	assert.Equal(t, core.Point{X: 150, Y: 100}, p)
}

func TestStopCancelsMove(t *testing.T) {
	f := NewSimFleet(10)
	f.AddUnit("a", core.Point{X: 100, Y: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- f.MoveTo(ctx, "a", 400, 100, 0) }()

	// Wait until the unit is actually underway before stopping it.
	require.Eventually(t, func() bool {
		p, _ := f.Position("a")
		return p.X > 100
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.Stop("a"))
	assert.ErrorIs(t, <-errCh, context.Canceled)

	p, _ := f.Position("a")
	assert.Less(t, p.X, 400)
}

func TestMoveToSupersedes(t *testing.T) {
	f := NewSimFleet(10)
	f.AddUnit("a", core.Point{X: 100, Y: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- f.MoveTo(ctx, "a", 400, 100, 0) }()
	require.Eventually(t, func() bool {
		p, _ := f.Position("a")
		return p.X > 100
	}, time.Second, 5*time.Millisecond)

	// A second move for the same unit cancels the first.
	f2 := make(chan error, 1)
	go func() { f2 <- f.MoveTo(ctx, "a", 110, 110, 0) }()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	require.NoError(t, <-f2)

	p, _ := f.Position("a")
	assert.Equal(t, core.Point{X: 110, Y: 110}, p)
}

func TestConnectedUnitsSorted(t *testing.T) {
	f := NewSimFleet(100)
	f.AddUnit("charlie", core.Point{X: 100, Y: 100})
	f.AddUnit("alpha", core.Point{X: 200, Y: 100})
	f.AddUnit("bravo", core.Point{X: 300, Y: 100})

	assert.Equal(t, []core.UnitID{"alpha", "bravo", "charlie"}, f.ConnectedUnits())

	f.RemoveUnit("bravo")
	assert.Equal(t, []core.UnitID{"alpha", "charlie"}, f.ConnectedUnits())
}

func TestUnknownUnit(t *testing.T) {
	f := NewSimFleet(100)

	assert.ErrorIs(t, f.MoveTo(context.Background(), "ghost", 100, 100, 0), ErrUnknownUnit)
	assert.ErrorIs(t, f.SetIndicator("ghost", 1, 2, 3), ErrUnknownUnit)
	assert.ErrorIs(t, f.EmitSignal("ghost", 4, 100), ErrUnknownUnit)
	assert.ErrorIs(t, f.Stop("ghost"), ErrUnknownUnit)

	_, ok := f.Position("ghost")
	assert.False(t, ok)
}

func TestIndicatorState(t *testing.T) {
	f := NewSimFleet(100)
	f.AddUnit("a", core.Point{X: 100, Y: 100})

	require.NoError(t, f.SetIndicator("a", 255, 64, 0))
	r, g, b := f.Indicator("a")
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(64), g)
	assert.Equal(t, uint8(0), b)
}

func TestTeleport(t *testing.T) {
	f := NewSimFleet(100)
	f.AddUnit("a", core.Point{X: 100, Y: 100})

	f.Teleport("a", core.Point{X: 300, Y: 250})
	p, _ := f.Position("a")
	assert.Equal(t, core.Point{X: 300, Y: 250}, p)
}
