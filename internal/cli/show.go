package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"spreadwatch/internal/app"
)

var (
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the latest spreads, newest first",
	Long: `Lists buy exchange, sell exchange, prices and spread percentage. Rows come
from PostgreSQL when database.dsn is set, otherwise from history.spread_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of spread rows to print")
}
