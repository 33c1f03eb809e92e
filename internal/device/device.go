// Package device declares the collaborator interfaces the motion core
// consumes, and provides a simulated fleet implementation.
//
// The real wireless driver lives outside this module; its asynchronous
// connection machinery is expected to stay hidden behind these blocking
// interfaces. The core never needs to know the driver is asynchronous.
package device

import (
	"context"
	"errors"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// ErrUnknownUnit is returned for commands addressed to a unit that is not
// connected.
var ErrUnknownUnit = errors.New("device: unknown unit")

// Commander issues physical commands to units. MoveTo blocks until the move
// completes, fails, or ctx expires; callers bound every call with a timeout
// so a stuck device cannot stall the motion core.
type Commander interface {
	MoveTo(ctx context.Context, id core.UnitID, x, y, angle int) error
	SetIndicator(id core.UnitID, r, g, b uint8) error
	EmitSignal(id core.UnitID, signalID, volume int) error
	Stop(id core.UnitID) error
}

// Telemetry exposes current position data for connected units.
type Telemetry interface {
	// Position returns the unit's current world position, false when no
	// telemetry is available for it.
	Position(id core.UnitID) (core.Point, bool)
	// ConnectedUnits lists every currently connected unit.
	ConnectedUnits() []core.UnitID
}
