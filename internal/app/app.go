package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"futures-sim-bot/internal/alerts"
	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/binance"
	"futures-sim-bot/internal/binance/rest"
	"futures-sim-bot/internal/binance/ws"
	"futures-sim-bot/internal/config"
	"futures-sim-bot/internal/engine"
	"futures-sim-bot/internal/metrics"
	"futures-sim-bot/internal/portfolio"
	"futures-sim-bot/internal/pricing"
	"futures-sim-bot/internal/sizing"
	"futures-sim-bot/internal/state"
	"futures-sim-bot/internal/state/file"
	"futures-sim-bot/internal/state/sqlite"
	"futures-sim-bot/internal/timescale"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const alertTimeout = 5 * time.Second

// App owns the wired components and exposes the operations the CLI and
// the dashboard consume. All balance mutation goes through the engine.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    state.Store
	source   pricing.Source
	mock     *pricing.Mock
	live     *binance.Source
	balances *balance.Store
	engine   *engine.Engine
	view     *portfolio.View
	prom     *metrics.Prometheus
	alerts   *alerts.Telegram
	tsdb     *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := openStore(cfg.State)
	if err != nil {
		return nil, err
	}

	prom := metrics.NewPrometheus()

	a := &App{
		cfg:   cfg,
		log:   log,
		store: store,
		prom:  prom,
	}

	switch cfg.Mode {
	case config.ModeMock:
		a.mock = pricing.NewMock(store, decimalMap(cfg.Mock.Catalog), cfg.Mock.JitterFraction, time.Now().UnixNano())
		a.source = a.mock
	case config.ModeLive:
		apiKey := strings.TrimSpace(os.Getenv(config.EnvAPIKey))
		apiSecret := strings.TrimSpace(os.Getenv(config.EnvAPISecret))
		if apiKey == "" || apiSecret == "" {
			_ = store.Close()
			return nil, fmt.Errorf("%s and %s are required in live mode", config.EnvAPIKey, config.EnvAPISecret)
		}
		restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, apiKey, apiSecret, log)
		wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)
		a.live = binance.NewSource(restClient, wsClient, log)
		a.source = a.live
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unsupported mode %q", cfg.Mode)
	}

	a.balances = balance.NewStore(store, balance.Balance(decimalMap(cfg.Mock.SeedBalance)), log)
	a.engine = engine.New(a.source, a.balances, store, cfg.Market, prom.Metrics, log)
	a.view = portfolio.NewView(a.balances, a.source, cfg.Market.QuoteAsset, log)
	a.alerts = alerts.NewTelegram(cfg.Telegram, log)

	tsdb, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.tsdb = tsdb
	return a, nil
}

func openStore(cfg config.StateConfig) (state.Store, error) {
	switch cfg.Backend {
	case "file":
		return file.New(cfg.FileDir)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		return sqlite.New(cfg.SQLitePath)
	}
}

func (a *App) Close() error {
	if a.tsdb != nil {
		_ = a.tsdb.Close()
	}
	return a.store.Close()
}

// Prices returns the full catalog of current prices.
func (a *App) Prices(ctx context.Context) ([]pricing.Ticker, error) {
	return a.source.GetAllPrices(ctx)
}

// Balance returns the simulated account balance.
func (a *App) Balance(ctx context.Context) (balance.Balance, error) {
	return a.engine.Balance(ctx)
}

// LiveAccountBalance queries the live provider's account. Mock mode
// has no external account to query.
func (a *App) LiveAccountBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	if a.live == nil {
		return nil, errors.New("account balance requires live mode")
	}
	return a.live.GetAccountBalance(ctx)
}

func (a *App) Buy(ctx context.Context, symbol string, quantity decimal.Decimal) (engine.Trade, error) {
	return a.execute(ctx, symbol, engine.SideBuy, quantity)
}

func (a *App) Sell(ctx context.Context, symbol string, quantity decimal.Decimal) (engine.Trade, error) {
	return a.execute(ctx, symbol, engine.SideSell, quantity)
}

func (a *App) execute(ctx context.Context, symbol string, side engine.Side, quantity decimal.Decimal) (engine.Trade, error) {
	trade, err := a.engine.Execute(ctx, symbol, side, quantity)
	if err != nil {
		return engine.Trade{}, err
	}
	a.afterCommit(ctx, trade)
	return trade, nil
}

func (a *App) afterCommit(ctx context.Context, trade engine.Trade) {
	a.tsdb.EnqueueTrade(timescale.TradeRow{
		Time:     trade.Timestamp,
		TradeID:  trade.ID,
		Symbol:   trade.Symbol,
		Side:     string(trade.Side),
		Quantity: trade.Quantity.String(),
		Price:    trade.Price.String(),
		Cost:     trade.Cost.String(),
	})
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	msg := fmt.Sprintf("%s %s %s @ %s (%s %s)",
		trade.Side, trade.Quantity, trade.Symbol, trade.Price, trade.Cost, a.cfg.Market.QuoteAsset)
	if err := a.alerts.Send(alertCtx, msg); err != nil {
		a.log.Warn("trade alert failed", zap.Error(err))
	}
}

// SizeResult is what calc_size hands back to the caller.
type SizeResult struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	RiskAmount decimal.Decimal `json:"risk_amount"`
	LotSize    decimal.Decimal `json:"lot_size"`
}

// CalcSize prices the symbol and runs the position sizer. A zero
// account equity defaults to the current quote-asset balance, matching
// how a trader sizes off their free margin.
func (a *App) CalcSize(ctx context.Context, symbol string, params sizing.RiskParameters) (SizeResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if params.AccountEquity.IsZero() {
		bal, err := a.engine.Balance(ctx)
		if err != nil {
			return SizeResult{}, err
		}
		params.AccountEquity = bal.Get(a.cfg.Market.QuoteAsset)
	}
	price, err := a.source.GetPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, pricing.ErrUnavailable) {
			a.prom.Metrics.PriceFetchFailures.Inc()
		}
		return SizeResult{}, err
	}
	lotSize := decimal.NewFromFloat(a.cfg.Market.LotSize(symbol))
	quantity, err := sizing.Size(params, price, lotSize)
	if err != nil {
		return SizeResult{}, err
	}
	return SizeResult{
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		RiskAmount: params.AccountEquity.Mul(params.RiskFraction),
		LotSize:    lotSize,
	}, nil
}

// Summarize values the portfolio for display.
func (a *App) Summarize(ctx context.Context) (portfolio.Summary, error) {
	summary, err := a.view.Summarize(ctx)
	if err != nil {
		return portfolio.Summary{}, err
	}
	a.tsdb.EnqueueValuation(timescale.ValuationRow{
		Time:       time.Now().UTC(),
		TotalValue: summary.TotalValue.String(),
		QuoteAsset: a.cfg.Market.QuoteAsset,
		Partial:    summary.Partial,
		Assets:     len(summary.Positions),
	})
	return summary, nil
}

// History returns the append-only trade log.
func (a *App) History(ctx context.Context) ([]engine.Trade, error) {
	return a.engine.History(ctx)
}

// SetMockPrice steers the simulation's catalog. Mock mode only.
func (a *App) SetMockPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if a.mock == nil {
		return errors.New("price overrides require mock mode")
	}
	return a.mock.SetPrice(ctx, symbol, price)
}

func decimalMap(src map[string]float64) map[string]decimal.Decimal {
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = decimal.NewFromFloat(v)
	}
	return dst
}
