package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeMock = "mock"
	ModeLive = "live"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Mode      string          `yaml:"mode"`
	State     StateConfig     `yaml:"state"`
	Market    MarketConfig    `yaml:"market"`
	Mock      MockConfig      `yaml:"mock"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Serve     ServeConfig     `yaml:"serve"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type StateConfig struct {
	Backend    string `yaml:"backend"` // sqlite or file
	SQLitePath string `yaml:"sqlite_path"`
	FileDir    string `yaml:"file_dir"`
}

type MarketConfig struct {
	QuoteAsset     string             `yaml:"quote_asset"`
	DefaultLotSize float64            `yaml:"default_lot_size"`
	LotSizes       map[string]float64 `yaml:"lot_sizes"`
	// Symbols drives live-mode stream subscriptions; the mock catalog
	// is a separate concern and never feeds the live path.
	Symbols []string `yaml:"symbols"`
}

type MockConfig struct {
	SeedBalance    map[string]float64 `yaml:"seed_balance"`
	Catalog        map[string]float64 `yaml:"catalog"`
	JitterFraction float64            `yaml:"jitter_fraction"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Load reads a yaml config from path. An empty path yields the built-in
// defaults, so the CLI works out of the box in mock mode.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMock
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "sqlite"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/futures-sim-bot.db"
	}
	if cfg.State.FileDir == "" {
		cfg.State.FileDir = "data/snapshots"
	}
	if cfg.Market.QuoteAsset == "" {
		cfg.Market.QuoteAsset = "USDT"
	}
	if cfg.Market.DefaultLotSize == 0 {
		cfg.Market.DefaultLotSize = 0.001
	}
	if len(cfg.Market.Symbols) == 0 {
		cfg.Market.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}
	}
	if len(cfg.Mock.SeedBalance) == 0 {
		cfg.Mock.SeedBalance = map[string]float64{cfg.Market.QuoteAsset: 10000}
	}
	if len(cfg.Mock.Catalog) == 0 {
		cfg.Mock.Catalog = map[string]float64{
			"BTCUSDT": 68000,
			"ETHUSDT": 3200,
			"BNBUSDT": 560,
		}
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://testnet.binancefuture.com"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://stream.binancefuture.com/ws"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeMock, ModeLive:
	default:
		return fmt.Errorf("mode must be %q or %q", ModeMock, ModeLive)
	}
	switch cfg.State.Backend {
	case "sqlite", "file":
	default:
		return errors.New("state.backend must be sqlite or file")
	}
	if cfg.Market.QuoteAsset == "" {
		return errors.New("market.quote_asset is required")
	}
	if cfg.Market.DefaultLotSize <= 0 {
		return errors.New("market.default_lot_size must be > 0")
	}
	for symbol, lot := range cfg.Market.LotSizes {
		if lot <= 0 {
			return fmt.Errorf("market.lot_sizes[%s] must be > 0", symbol)
		}
	}
	for _, symbol := range cfg.Market.Symbols {
		if symbol == "" || !strings.HasSuffix(symbol, cfg.Market.QuoteAsset) || symbol == cfg.Market.QuoteAsset {
			return fmt.Errorf("market.symbols entry %q is not quoted in %s", symbol, cfg.Market.QuoteAsset)
		}
	}
	for asset, qty := range cfg.Mock.SeedBalance {
		if qty < 0 {
			return fmt.Errorf("mock.seed_balance[%s] must be >= 0", asset)
		}
	}
	for symbol, price := range cfg.Mock.Catalog {
		if price <= 0 {
			return fmt.Errorf("mock.catalog[%s] must be > 0", symbol)
		}
		if !strings.HasSuffix(symbol, cfg.Market.QuoteAsset) {
			return fmt.Errorf("mock.catalog[%s] is not quoted in %s", symbol, cfg.Market.QuoteAsset)
		}
	}
	if cfg.Mock.JitterFraction < 0 || cfg.Mock.JitterFraction >= 1 {
		return errors.New("mock.jitter_fraction must be in [0, 1)")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}

// LotSize returns the minimum tradable increment for a symbol.
func (c MarketConfig) LotSize(symbol string) float64 {
	if lot, ok := c.LotSizes[symbol]; ok {
		return lot
	}
	return c.DefaultLotSize
}

// BaseAsset derives the base asset of a symbol quoted in QuoteAsset,
// e.g. BTCUSDT -> BTC for quote asset USDT.
func (c MarketConfig) BaseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, c.QuoteAsset)
}
