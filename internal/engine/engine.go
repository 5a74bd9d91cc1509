package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/config"
	"futures-sim-bot/internal/metrics"
	"futures-sim-bot/internal/pricing"
	"futures-sim-bot/internal/state"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidQuantity marks a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrPersistenceFailure means the snapshot write failed after
	// validation; the in-memory balance has been rolled back and the
	// trade must not be considered executed.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Engine validates and applies trades against the balance store using
// the price source. All balance mutation funnels through Execute; at
// most one trade runs at a time.
type Engine struct {
	source   pricing.Source
	balances *balance.Store
	kv       state.Store
	market   config.MarketConfig
	metrics  *metrics.Metrics
	log      *zap.Logger

	mu      sync.Mutex
	current balance.Balance
}

func New(source pricing.Source, balances *balance.Store, kv state.Store, market config.MarketConfig, m *metrics.Metrics, log *zap.Logger) *Engine {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		source:   source,
		balances: balances,
		kv:       kv,
		market:   market,
		metrics:  m,
		log:      log,
	}
}

// Execute runs a single trade request to a terminal status. The quote
// leg and the base leg commit together or not at all; a trade only
// succeeds once both the balance snapshot and the trade record are
// durable.
func (e *Engine) Execute(ctx context.Context, symbol string, side Side, quantity decimal.Decimal) (Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := newRequest()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if !quantity.IsPositive() {
		return Trade{}, e.reject(req, fmt.Errorf("%w: %s %s quantity %s must be > 0", ErrInvalidQuantity, side, symbol, quantity))
	}

	price, err := e.source.GetPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, pricing.ErrUnavailable) {
			e.metrics.PriceFetchFailures.Inc()
		}
		return Trade{}, e.reject(req, err)
	}
	req.advance(StatusPriced)

	baseAsset := e.market.BaseAsset(symbol)
	if baseAsset == symbol || baseAsset == "" {
		return Trade{}, e.reject(req, fmt.Errorf("symbol %s is not quoted in %s: %w", symbol, e.market.QuoteAsset, pricing.ErrUnknownSymbol))
	}

	// The load-apply-save sequence must not interleave with a writer in
	// another process sharing the store, or its update would be lost.
	release, err := e.kv.Lock(ctx)
	if err != nil {
		e.metrics.PersistenceFailures.Inc()
		return Trade{}, fmt.Errorf("%w: store lock: %v", ErrPersistenceFailure, err)
	}
	defer release()

	// The last durably-saved snapshot is authoritative.
	before, err := e.balances.Load(ctx)
	if err != nil {
		return Trade{}, e.reject(req, err)
	}
	e.current = before

	cost := quantity.Mul(price)
	after, err := before.Apply(side == SideBuy, baseAsset, e.market.QuoteAsset, quantity, cost)
	if err != nil {
		return Trade{}, e.reject(req, fmt.Errorf("%s %s %s: %w", side, quantity, symbol, err))
	}
	req.advance(StatusValidated)

	trade := Trade{
		ID:        ulid.Make().String(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
	}
	record, err := encodeTrade(trade)
	if err != nil {
		return Trade{}, e.reject(req, err)
	}

	if err := e.balances.Save(ctx, after); err != nil {
		e.metrics.PersistenceFailures.Inc()
		e.current = before
		return Trade{}, fmt.Errorf("%w: balance snapshot: %v", ErrPersistenceFailure, err)
	}
	e.current = after

	if err := e.kv.Set(ctx, tradeKey(trade.ID), record); err != nil {
		e.metrics.PersistenceFailures.Inc()
		if restoreErr := e.balances.Save(ctx, before); restoreErr != nil {
			// Durable state now holds the new balance without its trade
			// record; drop the cache so the next call reloads.
			e.log.Error("balance restore failed after trade record write failure",
				zap.String("trade_id", trade.ID), zap.Error(restoreErr))
			e.current = nil
		} else {
			e.current = before
		}
		return Trade{}, fmt.Errorf("%w: trade record: %v", ErrPersistenceFailure, err)
	}

	req.advance(StatusCommitted)
	e.metrics.TradesExecuted.Inc()
	e.log.Info("trade committed",
		zap.String("trade_id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.String("cost", cost.String()),
	)
	return trade, nil
}

// Balance returns the engine's view of the balance, loading the durable
// snapshot when no trade has run yet.
func (e *Engine) Balance(ctx context.Context) (balance.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		return e.current.Clone(), nil
	}
	bal, err := e.balances.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.current = bal
	return bal.Clone(), nil
}

func (e *Engine) reject(req *request, err error) error {
	req.advance(StatusRejected)
	e.metrics.TradesRejected.Inc()
	return err
}
