package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
	"github.com/softgrid-robotics/fleetmotion/internal/motion"
)

func newDemoCmd() *cobra.Command {
	var (
		units   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated fleet through crossing safe-move goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if units < 2 {
				return fmt.Errorf("demo needs at least 2 units, got %d", units)
			}
			return runDemo(cmd.Context(), units, timeout)
		},
	}

	cmd.Flags().IntVar(&units, "units", 3, "number of simulated units")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall demo timeout")
	return cmd
}

// runDemo places units along one mat edge and sends each to the opposite
// corner, so every pair of routes crosses near the center. The safety
// pipeline has to sort out who goes when.
func runDemo(ctx context.Context, units int, timeout time.Duration) error {
	cfg := config.Load()

	fleet := device.NewSimFleet(cfg.AssumedSpeed * 4)
	ids := make([]core.UnitID, units)
	starts := make([]core.Point, units)
	goals := make([]core.Point, units)
	span := cfg.MatMaxX - cfg.MatMinX
	for i := range ids {
		ids[i] = core.UnitID(fmt.Sprintf("unit-%d", i+1))
		off := span * (i + 1) / (units + 1)
		starts[i] = core.Point{X: cfg.MatMinX + off, Y: cfg.MatMinY + 20}
		goals[i] = core.Point{X: cfg.MatMaxX - off, Y: cfg.MatMaxY - 20}
		fleet.AddUnit(ids[i], starts[i])
	}

	sys := motion.NewSystem(fleet, fleet, cfg)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sys.Start(ctx)
	defer sys.Stop()

	// Let the tracker take its first samples before moving anything.
	time.Sleep(3 * cfg.TrackerInterval)

	color.Cyan("moving %d units across the mat...", units)

	var wg sync.WaitGroup
	results := make([]bool, units)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sys.Mover.SafeMove(ctx, ids[i], goals[i].X, goals[i].Y, 0)
		}(i)
		// Stagger submissions so reservations arbitrate, not race.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	moved := 0
	for i, ok := range results {
		if ok {
			moved++
			color.Green("  %s -> (%d,%d)", ids[i], goals[i].X, goals[i].Y)
		} else {
			color.Yellow("  %s refused (target contested)", ids[i])
		}
	}

	st := sys.Mover.Status()
	fmt.Printf("\n%d/%d moves completed; grid %dx%d, %d tracked, %d active plans\n",
		moved, units, st.Grid.Width, st.Grid.Height, st.Tracker.Tracked, st.Planner.ActivePlans)
	return nil
}
