package cli

import (
	"github.com/spf13/cobra"

	"spreadwatch/internal/app"
)

var simulateQuotes []string

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Short:   "Run one cycle over fixed quotes and print the spreads",
	Example: "  spreadwatch simulate --quote bitstamp=100:99 --quote kraken=98:97",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{Quotes: simulateQuotes})
	},
}

func init() {
	simulateCmd.Flags().StringArrayVar(&simulateQuotes, "quote", nil, "Exchange quote as name=ask:bid (repeatable)")
	_ = simulateCmd.MarkFlagRequired("quote")
}
