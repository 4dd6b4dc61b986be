package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SpreadRow is a parsed line of the spread history file.
type SpreadRow struct {
	BuyExchange  string
	SellExchange string
	Ratio        decimal.Decimal
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	CurrencyPair string
	Time         time.Time
}

// Direction labels the buy/sell leg, e.g. "kraken->bitstamp".
func (r SpreadRow) Direction() string {
	return r.BuyExchange + "->" + r.SellExchange
}

// ReadSpreads loads rows whose time falls in [from, to). Nil bounds are open.
func ReadSpreads(path string, from, to *time.Time) ([]SpreadRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spread history: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(SpreadHeader)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spread history header: %w", err)
	}
	if header[0] != SpreadHeader[0] {
		return nil, fmt.Errorf("%s does not look like a spread history file", path)
	}

	rows := make([]SpreadRow, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read spread history: %w", err)
		}

		row, err := parseSpreadRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if from != nil && row.Time.Before(*from) {
			continue
		}
		if to != nil && !row.Time.Before(*to) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LastSpreads returns up to limit of the most recent rows, newest first.
func LastSpreads(path string, limit int) ([]SpreadRow, error) {
	rows, err := ReadSpreads(path, nil, nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]SpreadRow, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out, nil
}

func parseSpreadRecord(record []string) (SpreadRow, error) {
	ratio, err := decimal.NewFromString(record[2])
	if err != nil {
		return SpreadRow{}, fmt.Errorf("parse spread: %w", err)
	}
	buy, err := decimal.NewFromString(record[4])
	if err != nil {
		return SpreadRow{}, fmt.Errorf("parse buy price: %w", err)
	}
	sell, err := decimal.NewFromString(record[5])
	if err != nil {
		return SpreadRow{}, fmt.Errorf("parse sell price: %w", err)
	}
	ts, err := strconv.ParseFloat(record[7], 64)
	if err != nil {
		return SpreadRow{}, fmt.Errorf("parse timestamp: %w", err)
	}

	return SpreadRow{
		BuyExchange:  record[0],
		SellExchange: record[1],
		Ratio:        ratio,
		BuyPrice:     buy,
		SellPrice:    sell,
		CurrencyPair: record[6],
		Time:         fromUnixSeconds(ts),
	}, nil
}

func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}

// Record renders the row in spread history column order.
func (r SpreadRow) Record() []string {
	return []string{
		r.BuyExchange,
		r.SellExchange,
		r.Ratio.String(),
		formatPretty(r.Time),
		r.BuyPrice.String(),
		r.SellPrice.String(),
		r.CurrencyPair,
		formatTimestamp(float64(r.Time.UnixMicro()) / 1e6),
	}
}
