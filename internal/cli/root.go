// Package cli implements the fleetmotion command surface.
package cli

import "github.com/spf13/cobra"

var version = "dev"

// SetVersion stamps the build version shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "fleetmotion",
	Short: "Motion planning and collision avoidance for mat-bound unit fleets",
	Long: `fleetmotion coordinates multiple motorized units sharing a bounded mat:
grid-based occupancy tracking, A* path planning, target reservation and
spatio-temporal conflict resolution across concurrently moving units.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newStatusCmd())
}
