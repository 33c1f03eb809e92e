package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/grid"
)

func newPlanCmd() *cobra.Command {
	var obstacles []string

	cmd := &cobra.Command{
		Use:   "plan <x1> <y1> <x2> <y2>",
		Short: "Compute a path between two mat coordinates",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords := make([]int, 4)
			for i, a := range args {
				v, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("coordinate %q: %w", a, err)
				}
				coords[i] = v
			}
			start := core.Point{X: coords[0], Y: coords[1]}
			goal := core.Point{X: coords[2], Y: coords[3]}

			cfg := config.Load()
			g := grid.New(cfg)
			for _, o := range obstacles {
				p, err := parsePoint(o)
				if err != nil {
					return err
				}
				g.SetObstacle(p)
			}

			path := g.PlanPath("planner-cli", start, goal)
			if len(path) == 0 {
				color.Red("no path from (%d,%d) to (%d,%d)", start.X, start.Y, goal.X, goal.Y)
				return nil
			}

			color.Green("path with %d waypoints:", len(path))
			for i, wp := range path {
				fmt.Printf("  %3d: (%d, %d)\n", i, wp.X, wp.Y)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&obstacles, "obstacle", nil, "static obstacle at x,y (repeatable)")
	return cmd
}

func parsePoint(s string) (core.Point, error) {
	var x, y int
	if _, err := fmt.Sscanf(s, "%d,%d", &x, &y); err != nil {
		return core.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	return core.Point{X: x, Y: y}, nil
}
