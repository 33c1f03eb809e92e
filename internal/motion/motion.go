// Package motion exposes the safety-checked move operation: target
// reservation, path arbitration and the physical device command, combined
// behind one call.
package motion

import (
	"context"
	"log"
	"sync"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
	"github.com/softgrid-robotics/fleetmotion/internal/grid"
	"github.com/softgrid-robotics/fleetmotion/internal/planner"
	"github.com/softgrid-robotics/fleetmotion/internal/tracker"
)

// Mover is the externally visible "move unit safely" surface.
//
// The reservation table is the second piece of shared mutable state beside
// the occupancy grid: its check-then-insert runs under one mutex so two
// units can never be granted overlapping target footprints in the same
// instant. The lock is never held across a device call.
type Mover struct {
	grid *grid.Grid
	plnr *planner.Planner
	trk  *tracker.Tracker
	cmd  device.Commander
	tel  device.Telemetry
	cfg  *config.Config

	mu           sync.Mutex
	reservations map[core.UnitID]core.Point
	enabled      bool
}

// New creates a mover. Collision avoidance starts enabled.
func New(g *grid.Grid, p *planner.Planner, trk *tracker.Tracker, cmd device.Commander, tel device.Telemetry, cfg *config.Config) *Mover {
	return &Mover{
		grid:         g,
		plnr:         p,
		trk:          trk,
		cmd:          cmd,
		tel:          tel,
		cfg:          cfg,
		reservations: make(map[core.UnitID]core.Point),
		enabled:      true,
	}
}

// SetCollisionAvoidance toggles the safety pipeline. Disabled, SafeMove
// degrades to a raw device move.
func (m *Mover) SetCollisionAvoidance(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// CollisionAvoidanceEnabled reports the current toggle.
func (m *Mover) CollisionAvoidanceEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// SafeMove moves the unit to (x,y,angle) with the full safety pipeline:
// position lookup, target-safety check, path arbitration, footprint
// reservation, then the physical command. The reservation covers only the
// arbitration window; it is released once the command returns, success or
// not. Returns false without moving when the target is unsafe or the
// footprint cannot be reserved.
func (m *Mover) SafeMove(ctx context.Context, unit core.UnitID, x, y, angle int) bool {
	target := core.Point{X: x, Y: y}

	if !m.CollisionAvoidanceEnabled() {
		return m.directMove(ctx, unit, target, angle) == nil
	}

	cur, ok := m.trk.CurrentPosition(unit)
	if !ok {
		// Telemetry gap: degrade to an unchecked move for this unit rather
		// than refuse it. Other units keep full checking.
		log.Printf("motion: no tracked position for %s, degrading to direct move", unit)
		return m.directMove(ctx, unit, target, angle) == nil
	}

	if !m.grid.IsSafeToMove(unit, target) {
		return false
	}

	// Side-effect arbitration: the planner sees this unit's intent and can
	// negotiate conflicts with concurrently requested units, even though the
	// physical command below is a direct move.
	m.plnr.RequestPath(unit, cur, target, core.PriorityNormal)

	if !m.reserve(unit, target) {
		return false
	}
	defer m.release(unit)

	m.grid.SetMoving(unit, true)
	defer m.grid.SetMoving(unit, false)

	return m.directMove(ctx, unit, target, angle) == nil
}

// IsSafeToMove reports whether the unit may be sent toward the target.
func (m *Mover) IsSafeToMove(unit core.UnitID, target core.Point) bool {
	return m.grid.IsSafeToMove(unit, target)
}

// reserve claims the target footprint. It fails when the footprint square
// overlaps another unit's live reservation or current position.
func (m *Mover) reserve(unit core.UnitID, target core.Point) bool {
	side := m.cfg.FootprintSide

	m.mu.Lock()
	for other, r := range m.reservations {
		if other != unit && core.OverlapSquares(target, r, side) {
			m.mu.Unlock()
			log.Printf("motion: reservation for %s at (%d,%d) overlaps %s's reservation", unit, target.X, target.Y, other)
			return false
		}
	}
	for other, pos := range m.trk.AllPositions() {
		if other != unit && core.OverlapSquares(target, pos, side) {
			m.mu.Unlock()
			log.Printf("motion: reservation for %s at (%d,%d) overlaps %s's position", unit, target.X, target.Y, other)
			return false
		}
	}
	m.reservations[unit] = target
	m.mu.Unlock()

	m.grid.MarkReservation(unit, target)
	return true
}

// release drops the unit's reservation unconditionally.
func (m *Mover) release(unit core.UnitID) {
	m.mu.Lock()
	delete(m.reservations, unit)
	m.mu.Unlock()
	m.grid.ClearReservation(unit)
}

// Reservations returns a copy of the live reservation table.
func (m *Mover) Reservations() map[core.UnitID]core.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[core.UnitID]core.Point, len(m.reservations))
	for id, p := range m.reservations {
		out[id] = p
	}
	return out
}

// directMove issues the physical command under the configured hard timeout,
// so one stuck device cannot stall callers indefinitely.
func (m *Mover) directMove(ctx context.Context, unit core.UnitID, target core.Point, angle int) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()
	err := m.cmd.MoveTo(ctx, unit, target.X, target.Y, angle)
	if err != nil {
		log.Printf("motion: move command for %s failed: %v", unit, err)
	}
	return err
}

// SetIndicator passes an indicator color through to the device.
func (m *Mover) SetIndicator(unit core.UnitID, r, g, b uint8) error {
	return m.cmd.SetIndicator(unit, r, g, b)
}

// EmitSignal passes a signal request through to the device.
func (m *Mover) EmitSignal(unit core.UnitID, signalID, volume int) error {
	return m.cmd.EmitSignal(unit, signalID, volume)
}

// EmergencyStopAll clears all queued requests, active plans and
// reservations, then attempts a physical stop on every connected unit.
// Device stop failures are logged, never fatal; one stuck unit must not
// prevent stopping the rest.
func (m *Mover) EmergencyStopAll() {
	m.plnr.EmergencyStop()

	m.mu.Lock()
	held := make([]core.UnitID, 0, len(m.reservations))
	for unit := range m.reservations {
		held = append(held, unit)
	}
	m.reservations = make(map[core.UnitID]core.Point)
	m.mu.Unlock()
	for _, unit := range held {
		m.grid.ClearReservation(unit)
	}

	for _, unit := range m.tel.ConnectedUnits() {
		if err := m.cmd.Stop(unit); err != nil {
			log.Printf("motion: stop command for %s failed: %v", unit, err)
		}
	}
}

// SystemStatus aggregates the status of every component.
type SystemStatus struct {
	Grid         grid.Status
	Planner      planner.Status
	Tracker      tracker.Status
	Reservations int
}

// Status returns a point-in-time snapshot of the whole system.
func (m *Mover) Status() SystemStatus {
	m.mu.Lock()
	res := len(m.reservations)
	m.mu.Unlock()
	return SystemStatus{
		Grid:         m.grid.Snapshot(),
		Planner:      m.plnr.Snapshot(),
		Tracker:      m.trk.Snapshot(),
		Reservations: res,
	}
}
