package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll exchanges and record spreads until interrupted",
	Long: `Refreshes every configured exchange once per monitor.interval (at least 5s),
computes the spread for each exchange pair and hands the cycle to
monitor.actions. Stops on SIGINT/SIGTERM, monitor.run_for or monitor.max_cycles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}
