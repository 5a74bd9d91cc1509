package sizing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseParams() RiskParameters {
	return RiskParameters{
		AccountEquity:        dec("10000"),
		RiskFraction:         dec("0.01"),
		StopDistanceFraction: dec("0.05"),
	}
}

func TestSizeKnownScenario(t *testing.T) {
	// risk 100, stop distance 3000 per unit at price 60000 -> 0.0333..
	qty, err := Size(baseParams(), dec("60000"), dec("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !qty.Equal(dec("0.033")) {
		t.Fatalf("expected 0.033, got %s", qty)
	}
}

func TestSizeDeterministic(t *testing.T) {
	a, err := Size(baseParams(), dec("60000"), dec("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Size(baseParams(), dec("60000"), dec("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("same inputs produced %s and %s", a, b)
	}
}

func TestSizeMonotonicInPrice(t *testing.T) {
	prices := []string{"1000", "5000", "20000", "60000", "100000"}
	prev := decimal.Decimal{}
	for i, p := range prices {
		qty, err := Size(baseParams(), dec(p), dec("0.001"))
		if err != nil {
			t.Fatalf("price %s: %v", p, err)
		}
		if i > 0 && qty.GreaterThan(prev) {
			t.Fatalf("quantity grew with price: %s at %s after %s", qty, p, prev)
		}
		prev = qty
	}
}

func TestSizeLeverageScales(t *testing.T) {
	params := baseParams()
	params.Leverage = dec("5")
	qty, err := Size(params, dec("60000"), dec("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !qty.Equal(dec("0.166")) {
		t.Fatalf("expected 0.166, got %s", qty)
	}
}

func TestSizeInvalidRisk(t *testing.T) {
	cases := map[string]func(*RiskParameters){
		"zero equity":      func(p *RiskParameters) { p.AccountEquity = decimal.Zero },
		"negative equity":  func(p *RiskParameters) { p.AccountEquity = dec("-1") },
		"zero risk":        func(p *RiskParameters) { p.RiskFraction = decimal.Zero },
		"risk above one":   func(p *RiskParameters) { p.RiskFraction = dec("1.5") },
		"zero stop":        func(p *RiskParameters) { p.StopDistanceFraction = decimal.Zero },
		"stop above one":   func(p *RiskParameters) { p.StopDistanceFraction = dec("2") },
		"sub-one leverage": func(p *RiskParameters) { p.Leverage = dec("0.5") },
	}
	for name, mutate := range cases {
		params := baseParams()
		mutate(&params)
		if _, err := Size(params, dec("60000"), dec("0.001")); !errors.Is(err, ErrInvalidRisk) {
			t.Fatalf("%s: expected ErrInvalidRisk, got %v", name, err)
		}
	}
}

func TestSizeNonPositivePriceOrLot(t *testing.T) {
	if _, err := Size(baseParams(), decimal.Zero, dec("0.001")); !errors.Is(err, ErrInvalidRisk) {
		t.Fatalf("expected ErrInvalidRisk for zero price, got %v", err)
	}
	if _, err := Size(baseParams(), dec("60000"), decimal.Zero); !errors.Is(err, ErrInvalidRisk) {
		t.Fatalf("expected ErrInvalidRisk for zero lot, got %v", err)
	}
}

func TestSizeQuantityTooSmall(t *testing.T) {
	params := baseParams()
	params.AccountEquity = dec("10")
	_, err := Size(params, dec("60000"), dec("0.001"))
	if !errors.Is(err, ErrQuantityTooSmall) {
		t.Fatalf("expected ErrQuantityTooSmall, got %v", err)
	}
}

func TestSizeFullRiskFractionAllowed(t *testing.T) {
	params := baseParams()
	params.RiskFraction = dec("1")
	params.StopDistanceFraction = dec("1")
	qty, err := Size(params, dec("10000"), dec("0.001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !qty.Equal(dec("1")) {
		t.Fatalf("expected 1, got %s", qty)
	}
}
