// Package cli implements the ghostctl command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

// NewRootCmd creates the root ghostctl command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ghostctl",
		Short: "Inspect, replay and share ghost recordings",
		Long: `ghostctl manages the local ghost store: list and inspect recordings,
sample or export their frames, mirror them into a catalog database and
exchange them with the leaderboard service.`,
		Version:      fmt.Sprintf("%s (built %s)", Version, BuildDate),
		SilenceUsage: true,
	}
	opts.addFlags(root)

	root.AddCommand(
		newListCmd(opts),
		newInspectCmd(opts),
		newBestCmd(opts),
		newSampleCmd(opts),
		newExportCmd(opts),
		newDeleteCmd(opts),
		newCatalogCmd(opts),
		newUploadCmd(opts),
		newDownloadCmd(opts),
		newLeaderboardCmd(opts),
		newRaceCmd(opts),
	)

	return root
}
