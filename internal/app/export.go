package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"spreadwatch/internal/history"
)

var hundred = decimal.NewFromInt(100)

// ExportOptions hold parameters for exporting recorded spreads.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders the spread history as CSV and/or a PNG chart. Each buy/sell
// direction is downsampled to at most MaxPoints rows.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	rows, err := history.ReadSpreads(a.Config.History.SpreadFile, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no spreads found for export window")
		return nil
	}

	directions, series := groupByDirection(rows)
	exported := make([]history.SpreadRow, 0, len(rows))
	for _, dir := range directions {
		series[dir] = downsampleRows(series[dir], opts.MaxPoints)
		exported = append(exported, series[dir]...)
	}
	slices.SortStableFunc(exported, func(x, y history.SpreadRow) int {
		return x.Time.Compare(y.Time)
	})
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(exported)).Int("directions", len(directions)).Msg("exporting spreads")

	if opts.CSVPath != "" {
		if err := writeSpreadsCSV(opts.CSVPath, exported); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSpreadsPNG(opts.PNGPath, directions, series); err != nil {
			return err
		}
	}
	return nil
}

// groupByDirection splits rows per buy/sell leg, keeping first-seen order.
func groupByDirection(rows []history.SpreadRow) ([]string, map[string][]history.SpreadRow) {
	var order []string
	groups := make(map[string][]history.SpreadRow)
	for _, row := range rows {
		dir := row.Direction()
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], row)
	}
	return order, groups
}

func downsampleRows(rows []history.SpreadRow, max int) []history.SpreadRow {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	if max == 1 {
		return rows[len(rows)-1:]
	}

	result := make([]history.SpreadRow, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeSpreadsCSV(path string, rows []history.SpreadRow) (err error) {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(history.SpreadHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.Record()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeSpreadsPNG(path string, directions []string, series map[string][]history.SpreadRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Spread (%)",
			ValueFormatter: pctFormatter,
		},
	}
	for _, dir := range directions {
		rows := series[dir]
		x := make([]time.Time, len(rows))
		y := make([]float64, len(rows))
		for i, row := range rows {
			x[i] = row.Time
			y[i] = row.Ratio.Mul(hundred).InexactFloat64()
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    dir,
			XValues: x,
			YValues: y,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
