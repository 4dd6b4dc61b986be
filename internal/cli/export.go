package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spreadwatch/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the spread history as CSV rows and/or a PNG chart",
	Long: `Reads the spread history file, keeps rows inside [--from, --to) and
downsamples each buy/sell direction separately before writing. The PNG chart
plots one spread percentage line per direction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			from, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if exportTo != "" {
			to, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Earliest spread time to export (RFC3339, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Latest spread time to export (RFC3339, exclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Write a spread percentage chart per buy/sell direction to this PNG path")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Write spread rows (spread history columns) to this CSV path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum points per buy/sell direction (defaults to config)")
}
