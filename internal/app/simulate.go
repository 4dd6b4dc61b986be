package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"spreadwatch/internal/alerting"
	"spreadwatch/internal/config"
	"spreadwatch/internal/exchange"
	"spreadwatch/internal/scheduler"
)

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	// Quotes are name=ask:bid entries, one per exchange.
	Quotes []string
}

// Simulate runs a single cycle over static quotes through the log action, plus
// the alert action when it is configured, and prints the spreads.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	pair := a.Config.CurrencyPair()
	sources := make([]exchange.Source, 0, len(opts.Quotes))
	for _, raw := range opts.Quotes {
		name, ask, bid, err := parseQuoteFlag(raw)
		if err != nil {
			return err
		}
		sources = append(sources, exchange.NewStatic(name, pair, ask, bid))
	}
	if len(sources) < 2 {
		return fmt.Errorf("%w: simulate needs at least two --quote values", exchange.ErrConfiguration)
	}

	actions := []scheduler.Action{scheduler.NewLogAction(a.Logger)}
	if a.Config.HasAction(config.ActionAlert) {
		actions = append(actions, alerting.NewAlerter(a.newNotifier(), a.Config.Alerting.ThresholdPct, 0, a.Logger))
	}

	sched, err := scheduler.New(scheduler.Options{Interval: a.Config.Monitor.Interval}, sources, actions, a.Logger)
	if err != nil {
		return err
	}
	snap, err := sched.RunCycle(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Buy\tSell\tBuy Price\tSell Price\tSpread%")
	for _, s := range snap.Spreads {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			s.Buy.Name,
			s.Sell.Name,
			s.BuyPrice().String(),
			s.SellPrice().String(),
			s.Percent().StringFixed(3),
		)
	}
	return writer.Flush()
}

// parseQuoteFlag reads "name=ask:bid".
func parseQuoteFlag(raw string) (string, decimal.Decimal, decimal.Decimal, error) {
	name, prices, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid --quote %q: want name=ask:bid", raw)
	}
	askStr, bidStr, ok := strings.Cut(prices, ":")
	if !ok {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid --quote %q: want name=ask:bid", raw)
	}

	ask, err := decimal.NewFromString(strings.TrimSpace(askStr))
	if err != nil {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid ask in --quote %q: %w", raw, err)
	}
	bid, err := decimal.NewFromString(strings.TrimSpace(bidStr))
	if err != nil {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid bid in --quote %q: %w", raw, err)
	}
	if !ask.IsPositive() || !bid.IsPositive() {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid --quote %q: prices must be positive", raw)
	}
	return strings.TrimSpace(name), ask, bid, nil
}
