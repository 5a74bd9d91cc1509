package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"futures-sim-bot/internal/state"

	"github.com/shopspring/decimal"
)

const catalogKey = "prices:catalog"

// Mock serves prices from a persisted catalog snapshot, optionally
// jittered per call so repeated fetches look like a moving market.
// Jitter never touches the stored catalog.
type Mock struct {
	kv     state.Store
	seed   map[string]decimal.Decimal
	jitter float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMock(kv state.Store, seed map[string]decimal.Decimal, jitter float64, rngSeed int64) *Mock {
	return &Mock{
		kv:     kv,
		seed:   seed,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(rngSeed)),
	}
}

func (m *Mock) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	price, ok := catalog[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("symbol %s: %w", symbol, ErrUnknownSymbol)
	}
	return m.applyJitter(price), nil
}

func (m *Mock) GetAllPrices(ctx context.Context) ([]Ticker, error) {
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make([]Ticker, 0, len(catalog))
	for symbol, price := range catalog {
		tickers = append(tickers, Ticker{Symbol: symbol, Price: m.applyJitter(price)})
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })
	return tickers, nil
}

// Catalog loads the price catalog snapshot, seeding and persisting the
// default one on first use.
func (m *Mock) Catalog(ctx context.Context) (map[string]decimal.Decimal, error) {
	raw, ok, err := m.kv.Get(ctx, catalogKey)
	if err != nil {
		return nil, fmt.Errorf("catalog read: %w", err)
	}
	if !ok {
		catalog := cloneCatalog(m.seed)
		if err := m.saveCatalog(ctx, catalog); err != nil {
			return nil, err
		}
		return catalog, nil
	}
	return decodeCatalog(raw)
}

// SetPrice overwrites one symbol's catalog price. Used by the CLI to
// steer the simulation; rejects non-positive prices.
func (m *Mock) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price must be > 0, got %s", price)
	}
	release, err := m.kv.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return err
	}
	catalog[strings.ToUpper(strings.TrimSpace(symbol))] = price
	return m.saveCatalog(ctx, catalog)
}

func (m *Mock) saveCatalog(ctx context.Context, catalog map[string]decimal.Decimal) error {
	tickers := make([]Ticker, 0, len(catalog))
	for symbol, price := range catalog {
		tickers = append(tickers, Ticker{Symbol: symbol, Price: price})
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Symbol < tickers[j].Symbol })
	payload, err := json.Marshal(tickers)
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, catalogKey, payload)
}

func decodeCatalog(raw []byte) (map[string]decimal.Decimal, error) {
	var tickers []Ticker
	if err := json.Unmarshal(raw, &tickers); err != nil {
		return nil, fmt.Errorf("%w: price catalog: %v", state.ErrCorruptSnapshot, err)
	}
	catalog := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		if t.Symbol == "" {
			return nil, fmt.Errorf("%w: price catalog entry without symbol", state.ErrCorruptSnapshot)
		}
		if !t.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price catalog %s has non-positive price %s", state.ErrCorruptSnapshot, t.Symbol, t.Price)
		}
		catalog[t.Symbol] = t.Price
	}
	return catalog, nil
}

func (m *Mock) applyJitter(price decimal.Decimal) decimal.Decimal {
	if m.jitter <= 0 {
		return price
	}
	m.mu.Lock()
	offset := (m.rng.Float64()*2 - 1) * m.jitter
	m.mu.Unlock()
	return price.Mul(decimal.NewFromFloat(1 + offset))
}

func cloneCatalog(src map[string]decimal.Decimal) map[string]decimal.Decimal {
	dst := make(map[string]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
