package device

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// simStep is the integration interval for simulated motion.
const simStep = 20 * time.Millisecond

// arrivalEpsilon ends a simulated move when the unit is this close to its
// target, in mm.
const arrivalEpsilon = 1.0

// simUnit is one simulated unit's kinematic state.
type simUnit struct {
	x, y  float64
	angle int

	// indicator/signal state, observable by tests and the demo
	r, g, b  uint8
	signalID int
	volume   int

	cancelMove context.CancelFunc
}

// SimFleet is an in-process stand-in for the wireless driver. It implements
// both Commander and Telemetry: MoveTo animates the unit linearly toward the
// target at a fixed speed and blocks until arrival, cancellation, or ctx
// expiry, matching the blocking contract of the real driver.
type SimFleet struct {
	mu    sync.Mutex
	units map[core.UnitID]*simUnit
	speed float64 // mm/s
}

// NewSimFleet creates an empty simulated fleet moving at the given speed in
// mm/s.
func NewSimFleet(speed float64) *SimFleet {
	return &SimFleet{
		units: make(map[core.UnitID]*simUnit),
		speed: speed,
	}
}

// AddUnit connects a simulated unit at the given start position.
func (f *SimFleet) AddUnit(id core.UnitID, start core.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[id] = &simUnit{x: float64(start.X), y: float64(start.Y)}
}

// RemoveUnit disconnects a unit, cancelling any in-flight move.
func (f *SimFleet) RemoveUnit(id core.UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[id]; ok {
		if u.cancelMove != nil {
			u.cancelMove()
		}
		delete(f.units, id)
	}
}

// Position implements Telemetry.
func (f *SimFleet) Position(id core.UnitID) (core.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return core.Point{}, false
	}
	return core.Point{X: int(math.Round(u.x)), Y: int(math.Round(u.y))}, true
}

// ConnectedUnits implements Telemetry. The result is sorted so callers
// iterate units in a stable order.
func (f *SimFleet) ConnectedUnits() []core.UnitID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]core.UnitID, 0, len(f.units))
	for id := range f.units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MoveTo implements Commander. A new move for a unit supersedes any move
// already in flight for it.
func (f *SimFleet) MoveTo(ctx context.Context, id core.UnitID, x, y, angle int) error {
	moveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	u, ok := f.units[id]
	if !ok {
		f.mu.Unlock()
		return ErrUnknownUnit
	}
	if u.cancelMove != nil {
		u.cancelMove()
	}
	u.cancelMove = cancel
	u.angle = angle
	f.mu.Unlock()

	ticker := time.NewTicker(simStep)
	defer ticker.Stop()

	for {
		select {
		case <-moveCtx.Done():
			return moveCtx.Err()
		case <-ticker.C:
		}

		f.mu.Lock()
		u, ok := f.units[id]
		if !ok {
			f.mu.Unlock()
			return ErrUnknownUnit
		}
		dx := float64(x) - u.x
		dy := float64(y) - u.y
		dist := math.Hypot(dx, dy)
		if dist <= arrivalEpsilon {
			u.x, u.y = float64(x), float64(y)
			u.cancelMove = nil
			f.mu.Unlock()
			return nil
		}
		step := f.speed * simStep.Seconds()
		if step >= dist {
			u.x, u.y = float64(x), float64(y)
		} else {
			u.x += dx / dist * step
			u.y += dy / dist * step
		}
		f.mu.Unlock()
	}
}

// SetIndicator implements Commander.
func (f *SimFleet) SetIndicator(id core.UnitID, r, g, b uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return ErrUnknownUnit
	}
	u.r, u.g, u.b = r, g, b
	return nil
}

// EmitSignal implements Commander.
func (f *SimFleet) EmitSignal(id core.UnitID, signalID, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return ErrUnknownUnit
	}
	u.signalID = signalID
	u.volume = volume
	return nil
}

// Stop implements Commander: it cancels the unit's in-flight move, if any.
func (f *SimFleet) Stop(id core.UnitID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return ErrUnknownUnit
	}
	if u.cancelMove != nil {
		u.cancelMove()
		u.cancelMove = nil
	}
	return nil
}

// Teleport instantly relocates a unit. Test and demo hook; the real driver
// has no such operation.
func (f *SimFleet) Teleport(id core.UnitID, p core.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[id]; ok {
		u.x, u.y = float64(p.X), float64(p.Y)
	}
}

// Indicator returns the unit's last indicator color.
func (f *SimFleet) Indicator(id core.UnitID) (r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[id]; ok {
		return u.r, u.g, u.b
	}
	return 0, 0, 0
}
