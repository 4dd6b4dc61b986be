package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"spreadwatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the spreadwatch version, commit and build date",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.String())
	},
}
