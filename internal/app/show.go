package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"spreadwatch/internal/history"
	"spreadwatch/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// Show prints the most recent spreads, newest first. PostgreSQL is used when
// configured, otherwise the spread history file.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	rows, err := a.recentSpreads(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, "no spreads found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPair\tBuy\tSell\tBuy Price\tSell Price\tSpread%")
	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Time.UTC().Format(time.RFC3339),
			row.CurrencyPair,
			row.BuyExchange,
			row.SellExchange,
			row.BuyPrice.String(),
			row.SellPrice.String(),
			row.Ratio.Mul(hundred).StringFixed(3),
		)
	}
	return writer.Flush()
}

func (a *App) recentSpreads(ctx context.Context, limit int) ([]history.SpreadRow, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return history.LastSpreads(a.Config.History.SpreadFile, limit)
	}
	defer closeStore()

	samples, err := store.ListRecentSpreads(ctx, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]history.SpreadRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, sampleToRow(s))
	}
	return rows, nil
}

func sampleToRow(s storage.SpreadSample) history.SpreadRow {
	return history.SpreadRow{
		BuyExchange:  s.BuyExchange,
		SellExchange: s.SellExchange,
		Ratio:        s.Spread,
		BuyPrice:     s.BuyPrice,
		SellPrice:    s.SellPrice,
		CurrencyPair: s.CurrencyPair,
		Time:         s.SampledAt.UTC(),
	}
}
