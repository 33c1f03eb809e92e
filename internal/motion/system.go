package motion

import (
	"context"
	"sync"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
	"github.com/softgrid-robotics/fleetmotion/internal/grid"
	"github.com/softgrid-robotics/fleetmotion/internal/planner"
	"github.com/softgrid-robotics/fleetmotion/internal/tracker"
)

// System wires the full motion core together: grid, tracker, planner and
// mover, plus the pump that feeds accepted tracker updates into the
// occupancy grid.
type System struct {
	Grid    *grid.Grid
	Tracker *tracker.Tracker
	Planner *planner.Planner
	Mover   *Mover

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSystem assembles a motion core over the given device collaborators.
func NewSystem(cmd device.Commander, tel device.Telemetry, cfg *config.Config) *System {
	g := grid.New(cfg)
	trk := tracker.New(tel, cfg)
	plnr := planner.New(g, trk, cfg)
	return &System{
		Grid:    g,
		Tracker: trk,
		Planner: plnr,
		Mover:   New(g, plnr, trk, cmd, tel, cfg),
	}
}

// Start launches the tracker, the planner and the grid-update pump.
func (s *System) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	updates := s.Tracker.Subscribe(64)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				s.Grid.UpdatePosition(u.Unit, u.Pos)
			}
		}
	}()

	s.Tracker.Start(ctx)
	s.Planner.Start(ctx)
}

// Stop halts all background work.
func (s *System) Stop() {
	s.Planner.Stop()
	s.Tracker.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Disconnect removes every trace of a unit: occupancy, tracking state,
// queued requests and active plan. Other units are unaffected.
func (s *System) Disconnect(unit core.UnitID) {
	s.Planner.Cancel(unit)
	s.Tracker.Remove(unit)
	s.Grid.RemoveUnit(unit)
}
