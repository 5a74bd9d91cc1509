package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"futures-sim-bot/internal/binance/rest"
	"futures-sim-bot/internal/binance/ws"
	"futures-sim-bot/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	retryAttempts   = 3
	retryBackoff    = 200 * time.Millisecond
	streamPriceTTL  = 10 * time.Second
	markPriceSuffix = "@markPrice@1s"
)

// Source is the live provider: prices come from the mark-price stream
// when it is running and fresh, with the REST ticker as fallback. It
// satisfies the same contract and error taxonomy as the mock source.
type Source struct {
	rest *rest.Client
	ws   *ws.Client
	log  *zap.Logger

	mu        sync.RWMutex
	streamed  map[string]streamedPrice
	streaming bool
}

type streamedPrice struct {
	price decimal.Decimal
	at    time.Time
}

func NewSource(restClient *rest.Client, wsClient *ws.Client, log *zap.Logger) *Source {
	return &Source{
		rest:     restClient,
		ws:       wsClient,
		log:      log,
		streamed: make(map[string]streamedPrice),
	}
}

// Start subscribes to mark-price streams for the given symbols and
// keeps the cache updated until ctx is cancelled. Optional; without it
// every fetch hits REST.
func (s *Source) Start(ctx context.Context, symbols []string) error {
	if s.ws == nil || len(symbols) == 0 {
		return nil
	}
	if err := s.ws.Connect(ctx); err != nil {
		return err
	}
	streams := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		streams = append(streams, strings.ToLower(symbol)+markPriceSuffix)
	}
	if err := s.ws.Subscribe(ctx, streams...); err != nil {
		return err
	}
	s.mu.Lock()
	s.streaming = true
	s.mu.Unlock()
	go func() {
		_ = s.ws.Run(ctx, s.handleMessage)
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()
	return nil
}

type markPriceEvent struct {
	Event  string          `json:"e"`
	Symbol string          `json:"s"`
	Price  decimal.Decimal `json:"p"`
}

func (s *Source) handleMessage(msg json.RawMessage) {
	var event markPriceEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return
	}
	if event.Event != "markPriceUpdate" || event.Symbol == "" || !event.Price.IsPositive() {
		return
	}
	s.mu.Lock()
	s.streamed[event.Symbol] = streamedPrice{price: event.Price, at: time.Now()}
	s.mu.Unlock()
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if price, ok := s.cachedPrice(symbol); ok {
		return price, nil
	}
	var price decimal.Decimal
	err := s.retry(ctx, func() error {
		var err error
		price, err = s.rest.TickerPrice(ctx, symbol)
		return err
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (s *Source) GetAllPrices(ctx context.Context) ([]pricing.Ticker, error) {
	var tickers []pricing.Ticker
	err := s.retry(ctx, func() error {
		var err error
		tickers, err = s.rest.AllTickerPrices(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tickers, nil
}

// GetAccountBalance satisfies pricing.BalanceProvider for live mode.
func (s *Source) GetAccountBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	var balances map[string]decimal.Decimal
	err := s.retry(ctx, func() error {
		var err error
		balances, err = s.rest.AccountBalance(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Source) cachedPrice(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.streaming {
		return decimal.Decimal{}, false
	}
	entry, ok := s.streamed[symbol]
	if !ok || time.Since(entry.at) > streamPriceTTL {
		return decimal.Decimal{}, false
	}
	return entry.price, true
}

// retry re-runs transient failures with backoff. Unknown symbols are
// permanent and returned immediately.
func (s *Source) retry(ctx context.Context, fn func() error) error {
	backoff := retryBackoff
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, pricing.ErrUnknownSymbol) {
			return err
		}
		lastErr = err
		if attempt == retryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", pricing.ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}
