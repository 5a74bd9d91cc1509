package balance

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

func TestApplyBuy(t *testing.T) {
	bal := Balance{"USDT": dec("10000")}
	next, err := bal.Apply(true, "BTC", "USDT", dec("0.01"), dec("600"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Get("USDT").Equal(dec("9400")) {
		t.Fatalf("expected 9400 USDT, got %s", next.Get("USDT"))
	}
	if !next.Get("BTC").Equal(dec("0.01")) {
		t.Fatalf("expected 0.01 BTC, got %s", next.Get("BTC"))
	}
	if !bal.Get("USDT").Equal(dec("10000")) {
		t.Fatalf("apply mutated the receiver: %s", bal.Get("USDT"))
	}
}

func TestApplySell(t *testing.T) {
	bal := Balance{"USDT": dec("100"), "BTC": dec("0.05")}
	next, err := bal.Apply(false, "BTC", "USDT", dec("0.02"), dec("1200"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Get("BTC").Equal(dec("0.03")) {
		t.Fatalf("expected 0.03 BTC, got %s", next.Get("BTC"))
	}
	if !next.Get("USDT").Equal(dec("1300")) {
		t.Fatalf("expected 1300 USDT, got %s", next.Get("USDT"))
	}
}

func TestApplyBuyInsufficientQuote(t *testing.T) {
	bal := Balance{"USDT": dec("500")}
	_, err := bal.Apply(true, "BTC", "USDT", dec("0.01"), dec("600"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !bal.Get("USDT").Equal(dec("500")) {
		t.Fatalf("failed apply mutated the receiver")
	}
}

func TestApplySellInsufficientBase(t *testing.T) {
	bal := Balance{"USDT": dec("0"), "BTC": dec("0.01")}
	_, err := bal.Apply(false, "BTC", "USDT", dec("0.02"), dec("1200"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestApplyExactSpendToZero(t *testing.T) {
	bal := Balance{"USDT": dec("600")}
	next, err := bal.Apply(true, "BTC", "USDT", dec("0.01"), dec("600"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Get("USDT").IsZero() {
		t.Fatalf("expected zero USDT, got %s", next.Get("USDT"))
	}
}

func TestAssetsSorted(t *testing.T) {
	bal := Balance{"ETH": dec("1"), "BTC": dec("2"), "USDT": dec("3")}
	assets := bal.Assets()
	if len(assets) != 3 || assets[0] != "BTC" || assets[1] != "ETH" || assets[2] != "USDT" {
		t.Fatalf("unexpected order: %v", assets)
	}
}
