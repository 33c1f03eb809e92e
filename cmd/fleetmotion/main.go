// Command fleetmotion runs the motion-planning core against a simulated
// fleet.
package main

import (
	"fmt"
	"os"

	"github.com/softgrid-robotics/fleetmotion/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
