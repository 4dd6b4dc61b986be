package history

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spreadwatch/internal/exchange"
	"spreadwatch/internal/spread"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return records
}

func TestWriterHeaderOnceThenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	w := NewWriter(path, []string{"a", "b"})

	for k := 1; k <= 4; k++ {
		if err := w.Write([]string{"x", strings.Repeat("y", k)}); err != nil {
			t.Fatalf("write %d: %v", k, err)
		}
		lines := readLines(t, path)
		if len(lines) != 1+k {
			t.Fatalf("after %d writes expected %d lines, got %d", k, 1+k, len(lines))
		}
		if lines[0] != "a,b" {
			t.Fatalf("header should stay first, got %q", lines[0])
		}
	}

	// a fresh writer on an existing file must not repeat the header
	if err := NewWriter(path, []string{"a", "b"}).Write([]string{"z", "z"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := readLines(t, path)
	if len(lines) != 6 || lines[5] != "z,z" {
		t.Fatalf("unexpected content %v", lines)
	}
}

func TestWriterRejectsMismatchedRow(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "out.csv"), []string{"a", "b"})
	if err := w.Write([]string{"only"}); err == nil {
		t.Fatal("row with wrong field count should fail")
	}
}

func TestWriterKeepsHeaderAfterRejectedFirstRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spreads.csv")
	w := NewWriter(path, SpreadHeader)

	if err := w.Write([]string{"short"}); err == nil {
		t.Fatal("row with wrong field count should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("rejected row should not create the file, stat err %v", err)
	}

	row := []string{"a", "b", "0.01", "2024-01-01 00:00:00.000000", "1", "2", "BTC/USD", "1704067200.000000"}
	if err := w.Write(row); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := readLines(t, path)
	if len(lines) != 2 || lines[0] != strings.Join(SpreadHeader, ",") {
		t.Fatalf("header should precede the first row, got %v", lines)
	}
}

func TestWriterPropagatesFileErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWriter(filepath.Join(blocker, "out.csv"), []string{"a"})
	if err := w.Write([]string{"1"}); err == nil {
		t.Fatal("writing below a regular file should fail")
	}
}

func testSnapshot() spread.Snapshot {
	q := func(name, ask, bid string) exchange.Quote {
		return exchange.Quote{
			Name: name,
			Pair: exchange.BTCUSD,
			Ask:  decimal.NewNullDecimal(decimal.RequireFromString(ask)),
			Bid:  decimal.NewNullDecimal(decimal.RequireFromString(bid)),
		}
	}
	quotes := []exchange.Quote{q("A", "100", "99"), q("B", "98", "97"), q("C, Inc", "99", "98.5")}
	spreads, err := spread.Pairwise(quotes)
	if err != nil {
		panic(err)
	}
	return spread.Snapshot{
		ID:      uuid.New(),
		Time:    time.Date(2024, 3, 1, 12, 0, 0, 250_000_000, time.UTC),
		Pair:    exchange.BTCUSD,
		Quotes:  quotes,
		Spreads: spreads,
	}
}

func TestActionsShareCycleTimestamp(t *testing.T) {
	dir := t.TempDir()
	pricePath := filepath.Join(dir, "prices.csv")
	spreadPath := filepath.Join(dir, "spreads.csv")
	snap := testSnapshot()

	if err := NewPriceLog(pricePath).Run(context.Background(), snap); err != nil {
		t.Fatalf("price log: %v", err)
	}
	if err := NewSpreadLog(spreadPath).Run(context.Background(), snap); err != nil {
		t.Fatalf("spread log: %v", err)
	}

	prices := readRecords(t, pricePath)
	spreads := readRecords(t, spreadPath)

	if strings.Join(prices[0], ",") != "name,time_pretty,ask_price,bid_price,currency_pair,timestamp" {
		t.Fatalf("unexpected price header %v", prices[0])
	}
	if strings.Join(spreads[0], ",") != "buy_exchange,sell_exchange,spread,time_pretty,buy_price,sell_price,currency_pair,timestamp" {
		t.Fatalf("unexpected spread header %v", spreads[0])
	}
	if len(prices) != 4 || len(spreads) != 4 {
		t.Fatalf("expected 3 data rows each, got %d and %d", len(prices)-1, len(spreads)-1)
	}

	const ts = "1709294400.250000"
	const pretty = "2024-03-01 12:00:00.250000"
	for _, row := range prices[1:] {
		if row[5] != ts || row[1] != pretty {
			t.Fatalf("price row has wrong timing: %v", row)
		}
	}
	for _, row := range spreads[1:] {
		if row[7] != ts || row[3] != pretty {
			t.Fatalf("spread row has wrong timing: %v", row)
		}
	}

	if prices[3][0] != "C, Inc" {
		t.Fatalf("names with commas should round trip, got %q", prices[3][0])
	}
	if spreads[1][0] != "B" || spreads[1][1] != "A" || spreads[1][4] != "98" || spreads[1][5] != "99" || spreads[1][6] != "BTC/USD" {
		t.Fatalf("unexpected first spread row %v", spreads[1])
	}
}

func TestReadSpreads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spreads.csv")
	log := NewSpreadLog(path)

	first := testSnapshot()
	second := testSnapshot()
	second.Time = first.Time.Add(time.Minute)
	for _, snap := range []spread.Snapshot{first, second} {
		if err := log.Run(context.Background(), snap); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	rows, err := ReadSpreads(path, nil, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	if !rows[0].Time.Equal(first.Time) {
		t.Fatalf("timestamp should round trip, got %s want %s", rows[0].Time, first.Time)
	}
	if rows[0].Direction() != "B->A" || !rows[0].Ratio.Equal(first.Spreads[0].Ratio) {
		t.Fatalf("unexpected first row %+v", rows[0])
	}

	from := second.Time
	rows, err = ReadSpreads(path, &from, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("from filter should keep 3 rows, got %d", len(rows))
	}

	last, err := LastSpreads(path, 2)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if len(last) != 2 || !last[0].Time.Equal(second.Time) {
		t.Fatalf("unexpected tail %+v", last)
	}
}
