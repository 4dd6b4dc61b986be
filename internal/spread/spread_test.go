package spread

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"spreadwatch/internal/exchange"
)

func quote(name string, ask, bid string) exchange.Quote {
	return exchange.Quote{
		Name: name,
		Pair: exchange.BTCUSD,
		Ask:  decimal.NewNullDecimal(decimal.RequireFromString(ask)),
		Bid:  decimal.NewNullDecimal(decimal.RequireFromString(bid)),
	}
}

func TestCalculateExample(t *testing.T) {
	a := quote("A", "100", "99")
	b := quote("B", "98", "97")

	s, err := Calculate(a, b)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if s.Buy.Name != "B" || s.Sell.Name != "A" {
		t.Fatalf("expected buy B / sell A, got %s / %s", s.Buy.Name, s.Sell.Name)
	}
	want := decimal.NewFromInt(1).Div(decimal.NewFromInt(98))
	if !s.Ratio.Equal(want) {
		t.Fatalf("expected ratio %s, got %s", want, s.Ratio)
	}
	if s.Ratio.Round(4).String() != "0.0102" {
		t.Fatalf("expected ratio ~0.0102, got %s", s.Ratio)
	}
	if !s.Profitable() {
		t.Fatal("positive ratio should be profitable")
	}
	if !s.BuyPrice().Equal(decimal.NewFromInt(98)) || !s.SellPrice().Equal(decimal.NewFromInt(99)) {
		t.Fatalf("unexpected prices %s/%s", s.BuyPrice(), s.SellPrice())
	}
}

func TestCalculateSymmetric(t *testing.T) {
	pairs := [][2]exchange.Quote{
		{quote("A", "100", "99"), quote("B", "98", "97")},
		{quote("A", "100", "99"), quote("B", "101", "100.5")},
		{quote("A", "100", "99"), quote("B", "100", "99")},
		{quote("A", "98", "99.5"), quote("B", "100", "97")},
	}
	for i, p := range pairs {
		ab, err := Calculate(p[0], p[1])
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		ba, err := Calculate(p[1], p[0])
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if ab.Buy.Name != ba.Buy.Name || ab.Sell.Name != ba.Sell.Name || !ab.Ratio.Equal(ba.Ratio) {
			t.Fatalf("case %d: not symmetric: %s->%s %s vs %s->%s %s", i,
				ab.Buy.Name, ab.Sell.Name, ab.Ratio, ba.Buy.Name, ba.Sell.Name, ba.Ratio)
		}
	}
}

func TestCalculateNegativeSpreadStillEmitted(t *testing.T) {
	s, err := Calculate(quote("A", "100", "99"), quote("B", "100.5", "99.5"))
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if s.Buy.Name != "A" || s.Sell.Name != "B" {
		t.Fatalf("unexpected sides %s/%s", s.Buy.Name, s.Sell.Name)
	}
	if s.Profitable() {
		t.Fatalf("ratio %s should not be profitable", s.Ratio)
	}
}

func TestCalculateErrors(t *testing.T) {
	other := quote("B", "98", "97")
	other.Pair = exchange.BTCEUR
	if _, err := Calculate(quote("A", "100", "99"), other); !errors.Is(err, exchange.ErrConfiguration) {
		t.Fatalf("mismatched pairs should wrap ErrConfiguration, got %v", err)
	}

	empty := exchange.Quote{Name: "C", Pair: exchange.BTCUSD}
	if _, err := Calculate(quote("A", "100", "99"), empty); !errors.Is(err, ErrMissingPrice) {
		t.Fatalf("unset prices should return ErrMissingPrice, got %v", err)
	}

	if _, err := Calculate(quote("A", "0", "99"), quote("B", "1", "1")); !errors.Is(err, ErrZeroAsk) {
		t.Fatalf("zero ask should return ErrZeroAsk, got %v", err)
	}
}

func TestPairwiseCombinations(t *testing.T) {
	for n := 0; n <= 6; n++ {
		quotes := make([]exchange.Quote, n)
		for i := range quotes {
			quotes[i] = quote(fmt.Sprintf("ex%d", i), fmt.Sprintf("%d", 100+i), fmt.Sprintf("%d", 99+i))
		}

		spreads, err := Pairwise(quotes)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if want := n * (n - 1) / 2; len(spreads) != want {
			t.Fatalf("n=%d: expected %d spreads, got %d", n, want, len(spreads))
		}

		seen := make(map[string]bool)
		for _, s := range spreads {
			if s.Buy.Name == s.Sell.Name {
				t.Fatalf("n=%d: self pair %s", n, s.Buy.Name)
			}
			key := s.Buy.Name + "|" + s.Sell.Name
			if s.Sell.Name < s.Buy.Name {
				key = s.Sell.Name + "|" + s.Buy.Name
			}
			if seen[key] {
				t.Fatalf("n=%d: duplicate pair %s", n, key)
			}
			seen[key] = true
		}
	}
}

func TestPairwiseOrder(t *testing.T) {
	quotes := []exchange.Quote{
		quote("A", "100", "99"),
		quote("B", "101", "100"),
		quote("C", "102", "101"),
	}
	spreads, err := Pairwise(quotes)
	if err != nil {
		t.Fatalf("pairwise failed: %v", err)
	}
	// lower ask buys, higher bid sells, so each pair reads (first, second)
	want := [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}}
	for i, s := range spreads {
		if s.Buy.Name != want[i][0] || s.Sell.Name != want[i][1] {
			t.Fatalf("spread %d: expected %v, got %s/%s", i, want[i], s.Buy.Name, s.Sell.Name)
		}
	}
}
