package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/config"
	"futures-sim-bot/internal/engine"
	"futures-sim-bot/internal/pricing"
	"futures-sim-bot/internal/sizing"
	"futures-sim-bot/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.State.SQLitePath = filepath.Join(t.TempDir(), "sim.db")
	cfg.Mock.JitterFraction = 0
	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAppBuyThenBalance(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	trade, err := a.Buy(ctx, "BTCUSDT", dec("0.01"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !trade.Cost.Equal(dec("680")) {
		t.Fatalf("expected cost 680, got %s", trade.Cost)
	}
	bal, err := a.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Get("USDT").Equal(dec("9320")) {
		t.Fatalf("expected 9320 USDT, got %s", bal.Get("USDT"))
	}
	history, err := a.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(history))
	}
}

func TestAppSetMockPrice(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if err := a.SetMockPrice(ctx, "BTCUSDT", dec("50000")); err != nil {
		t.Fatalf("set price: %v", err)
	}
	trade, err := a.Buy(ctx, "BTCUSDT", dec("0.1"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !trade.Price.Equal(dec("50000")) {
		t.Fatalf("override not applied: price %s", trade.Price)
	}
}

func TestAppCalcSizeDefaultsEquityToQuoteBalance(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	result, err := a.CalcSize(ctx, "BTCUSDT", sizing.RiskParameters{
		RiskFraction:         dec("0.01"),
		StopDistanceFraction: dec("0.05"),
	})
	if err != nil {
		t.Fatalf("calc size: %v", err)
	}
	// Equity defaults to the 10000 USDT seed: 100 / (68000*0.05) floored
	// to the 0.001 lot.
	if !result.Quantity.Equal(dec("0.029")) {
		t.Fatalf("expected quantity 0.029, got %s", result.Quantity)
	}
	if !result.RiskAmount.Equal(dec("100")) {
		t.Fatalf("expected risk amount 100, got %s", result.RiskAmount)
	}
}

func TestAppLiveOnlyOps(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.LiveAccountBalance(context.Background()); err == nil {
		t.Fatalf("mock mode served a live account balance")
	}
}

func TestHandleTradeEndToEnd(t *testing.T) {
	a := newTestApp(t)

	body := bytes.NewBufferString(`{"symbol":"ETHUSDT","side":"buy","quantity":"2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/trades", body)
	rec := httptest.NewRecorder()
	a.handleTrade(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var trade engine.Trade
	if err := json.Unmarshal(rec.Body.Bytes(), &trade); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trade.Symbol != "ETHUSDT" || trade.Side != engine.SideBuy {
		t.Fatalf("unexpected trade: %+v", trade)
	}
	if !trade.Cost.Equal(dec("6400")) {
		t.Fatalf("expected cost 6400, got %s", trade.Cost)
	}
}

func TestHandleTradeErrors(t *testing.T) {
	a := newTestApp(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"symbol":`, http.StatusBadRequest},
		{"bad side", `{"symbol":"BTCUSDT","side":"hold","quantity":"1"}`, http.StatusBadRequest},
		{"unknown symbol", `{"symbol":"NOPEUSDT","side":"buy","quantity":"1"}`, http.StatusNotFound},
		{"zero quantity", `{"symbol":"BTCUSDT","side":"buy","quantity":"0"}`, http.StatusBadRequest},
		{"insufficient funds", `{"symbol":"BTCUSDT","side":"sell","quantity":"5"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/trades", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		a.handleTrade(rec, req)
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.code, rec.Code, rec.Body)
		}
	}
}

func TestHandlePortfolio(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.Buy(ctx, "BTCUSDT", dec("0.01")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	a.handlePortfolio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var summary struct {
		TotalValue decimal.Decimal `json:"total_value"`
		Partial    bool            `json:"partial"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Partial {
		t.Fatalf("summary marked partial")
	}
	// Buying at the catalog price conserves total value.
	if !summary.TotalValue.Equal(dec("10000")) {
		t.Fatalf("expected total 10000, got %s", summary.TotalValue)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", pricing.ErrUnknownSymbol), http.StatusNotFound},
		{fmt.Errorf("x: %w", engine.ErrInvalidQuantity), http.StatusBadRequest},
		{fmt.Errorf("x: %w", sizing.ErrInvalidRisk), http.StatusBadRequest},
		{fmt.Errorf("x: %w", sizing.ErrQuantityTooSmall), http.StatusBadRequest},
		{fmt.Errorf("x: %w", balance.ErrInsufficientFunds), http.StatusConflict},
		{fmt.Errorf("x: %w", pricing.ErrUnavailable), http.StatusBadGateway},
		{fmt.Errorf("x: %w", state.ErrCorruptSnapshot), http.StatusInternalServerError},
		{fmt.Errorf("x: %w", engine.ErrPersistenceFailure), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.code {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.code)
		}
	}
}
