package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/pricing"

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

type memoryStore struct {
	mu     sync.Mutex
	lockMu sync.Mutex
	data   map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value []byte) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryStore) Lock(ctx context.Context) (func(), error) {
	_ = ctx
	m.lockMu.Lock()
	return m.lockMu.Unlock, nil
}

func (m *memoryStore) Close() error { return nil }

type stubSource struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (s *stubSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	_ = ctx
	if err, ok := s.errs[symbol]; ok {
		return decimal.Decimal{}, err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("symbol %s: %w", symbol, pricing.ErrUnknownSymbol)
	}
	return price, nil
}

func (s *stubSource) GetAllPrices(ctx context.Context) ([]pricing.Ticker, error) {
	_ = ctx
	var tickers []pricing.Ticker
	for symbol, price := range s.prices {
		tickers = append(tickers, pricing.Ticker{Symbol: symbol, Price: price})
	}
	return tickers, nil
}

func newTestView(seed balance.Balance, source pricing.Source) *View {
	balances := balance.NewStore(newMemoryStore(), seed, zap.NewNop())
	return NewView(balances, source, "USDT", zap.NewNop())
}

func positionFor(t *testing.T, summary Summary, asset string) Position {
	t.Helper()
	for _, pos := range summary.Positions {
		if pos.Asset == asset {
			return pos
		}
	}
	t.Fatalf("no position for %s in %v", asset, summary.Positions)
	return Position{}
}

func TestSummarizeValuesAllAssets(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{
		"BTCUSDT": dec("60000"),
		"ETHUSDT": dec("3000"),
	}}
	view := newTestView(balance.Balance{
		"USDT": dec("9400"),
		"BTC":  dec("0.01"),
		"ETH":  dec("2"),
	}, source)

	summary, err := view.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Partial {
		t.Fatalf("summary marked partial")
	}
	if len(summary.Positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(summary.Positions))
	}
	// 9400 + 0.01*60000 + 2*3000 = 16000
	if !summary.TotalValue.Equal(dec("16000")) {
		t.Fatalf("expected total 16000, got %s", summary.TotalValue)
	}
	quote := positionFor(t, summary, "USDT")
	if !quote.UnitPrice.Equal(dec("1")) || !quote.Value.Equal(dec("9400")) {
		t.Fatalf("quote position mispriced: %+v", quote)
	}
	btc := positionFor(t, summary, "BTC")
	if !btc.PriceKnown || !btc.Value.Equal(dec("600")) {
		t.Fatalf("btc position: %+v", btc)
	}
}

func TestSummarizeSkipsZeroBalances(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"BTCUSDT": dec("60000")}}
	view := newTestView(balance.Balance{
		"USDT": dec("10000"),
		"BTC":  decimal.Zero,
	}, source)

	summary, err := view.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summary.Positions) != 1 {
		t.Fatalf("zero balance produced a position: %v", summary.Positions)
	}
}

func TestSummarizePartialOnUnavailablePrice(t *testing.T) {
	source := &stubSource{
		prices: map[string]decimal.Decimal{"BTCUSDT": dec("60000")},
		errs:   map[string]error{"ETHUSDT": fmt.Errorf("dial tcp: %w", pricing.ErrUnavailable)},
	}
	view := newTestView(balance.Balance{
		"USDT": dec("1000"),
		"BTC":  dec("0.1"),
		"ETH":  dec("5"),
	}, source)

	summary, err := view.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.Partial {
		t.Fatalf("summary not marked partial")
	}
	// ETH is listed but excluded from the total: 1000 + 0.1*60000.
	if !summary.TotalValue.Equal(dec("7000")) {
		t.Fatalf("expected total 7000, got %s", summary.TotalValue)
	}
	eth := positionFor(t, summary, "ETH")
	if eth.PriceKnown {
		t.Fatalf("unvalued position marked as priced: %+v", eth)
	}
	if !eth.Quantity.Equal(dec("5")) {
		t.Fatalf("unvalued position lost its quantity: %+v", eth)
	}
}

func TestSummarizePartialOnUnknownSymbol(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{}}
	view := newTestView(balance.Balance{
		"USDT": dec("500"),
		"XYZ":  dec("3"),
	}, source)

	summary, err := view.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.Partial {
		t.Fatalf("summary not marked partial for unknown symbol")
	}
	if !summary.TotalValue.Equal(dec("500")) {
		t.Fatalf("expected total 500, got %s", summary.TotalValue)
	}
}
