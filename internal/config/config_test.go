package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != ModeMock {
		t.Fatalf("expected mock mode default, got %q", cfg.Mode)
	}
	if cfg.State.Backend != "sqlite" {
		t.Fatalf("expected sqlite backend default, got %q", cfg.State.Backend)
	}
	if cfg.Market.QuoteAsset != "USDT" {
		t.Fatalf("expected USDT quote asset default, got %q", cfg.Market.QuoteAsset)
	}
	if cfg.Mock.SeedBalance["USDT"] != 10000 {
		t.Fatalf("expected seed balance 10000 USDT, got %v", cfg.Mock.SeedBalance)
	}
	if cfg.Mock.Catalog["BTCUSDT"] != 68000 {
		t.Fatalf("expected BTCUSDT 68000 in default catalog, got %v", cfg.Mock.Catalog)
	}
	if cfg.REST.Timeout != 10*time.Second {
		t.Fatalf("expected 10s REST timeout default, got %v", cfg.REST.Timeout)
	}
	if len(cfg.Market.Symbols) != 3 || cfg.Market.Symbols[0] != "BTCUSDT" {
		t.Fatalf("unexpected default market symbols: %v", cfg.Market.Symbols)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("mode: live\nmarket:\n  quote_asset: USDT\nmock:\n  catalog:\n    DOGEUSDT: 0.2\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != ModeLive {
		t.Fatalf("expected live mode, got %q", cfg.Mode)
	}
	if cfg.Mock.Catalog["DOGEUSDT"] != 0.2 {
		t.Fatalf("expected DOGEUSDT 0.2, got %v", cfg.Mock.Catalog)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := &Config{Mode: "paper"}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestValidateRejectsNegativeSeed(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Mock.SeedBalance["USDT"] = -1
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative seed balance")
	}
}

func TestValidateRejectsWrongCatalogQuote(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Mock.Catalog["ETHBTC"] = 0.05
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for catalog symbol not quoted in USDT")
	}
}

func TestValidateRejectsWrongSymbolQuote(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Market.Symbols = append(cfg.Market.Symbols, "ETHBTC")
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for market symbol not quoted in USDT")
	}
}

func TestValidateRejectsZeroLot(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Market.LotSizes = map[string]float64{"BTCUSDT": 0}
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for zero lot size")
	}
}

func TestValidateRequiresTimescaleDSN(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Timescale.Enabled = true
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for enabled timescale without dsn")
	}
}

func TestMarketHelpers(t *testing.T) {
	market := MarketConfig{QuoteAsset: "USDT", DefaultLotSize: 0.001, LotSizes: map[string]float64{"ETHUSDT": 0.01}}
	if got := market.LotSize("ETHUSDT"); got != 0.01 {
		t.Fatalf("expected 0.01, got %v", got)
	}
	if got := market.LotSize("BTCUSDT"); got != 0.001 {
		t.Fatalf("expected default lot 0.001, got %v", got)
	}
	if got := market.BaseAsset("BTCUSDT"); got != "BTC" {
		t.Fatalf("expected BTC, got %q", got)
	}
}
