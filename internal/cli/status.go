package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
	"github.com/softgrid-robotics/fleetmotion/internal/motion"
)

func newStatusCmd() *cobra.Command {
	var units int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a system snapshot after a short simulated run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), units)
		},
	}

	cmd.Flags().IntVar(&units, "units", 2, "number of simulated units")
	return cmd
}

func runStatus(ctx context.Context, units int) error {
	cfg := config.Load()

	fleet := device.NewSimFleet(cfg.AssumedSpeed)
	for i := 0; i < units; i++ {
		id := core.UnitID(fmt.Sprintf("unit-%d", i+1))
		fleet.AddUnit(id, core.Point{
			X: cfg.MatMinX + 50 + i*100,
			Y: cfg.MatMinY + 50,
		})
	}

	sys := motion.NewSystem(fleet, fleet, cfg)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sys.Start(ctx)
	defer sys.Stop()

	time.Sleep(5 * cfg.TrackerInterval)

	st := sys.Mover.Status()
	color.Cyan("grid: %dx%d cells (%dmm each), %d obstacles",
		st.Grid.Width, st.Grid.Height, st.Grid.CellSize, st.Grid.Obstacles)
	fmt.Printf("planner: running=%v queue=%d plans=%d\n",
		st.Planner.Running, st.Planner.QueueDepth, st.Planner.ActivePlans)
	fmt.Printf("tracker: running=%v tracked=%d\n", st.Tracker.Running, st.Tracker.Tracked)
	fmt.Printf("reservations: %d\n\n", st.Reservations)

	for id, u := range st.Grid.Units {
		fmt.Printf("  %s: (%d,%d) moving=%v path=%d updated %s ago\n",
			id, u.Position.X, u.Position.Y, u.Moving, u.PathLength, u.Age.Round(time.Millisecond))
	}
	return nil
}
