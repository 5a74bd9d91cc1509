package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol means the symbol is absent from the backing catalog.
// ErrUnavailable means the backing feed could not be reached; callers
// can retry an unavailable price but not an unknown symbol.
var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrUnavailable   = errors.New("price unavailable")
)

type Ticker struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Source yields current prices for symbols in its catalog. Both the
// mock and the live exchange implementation satisfy this contract,
// including the error taxonomy above.
type Source interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAllPrices(ctx context.Context) ([]Ticker, error)
}

// BalanceProvider is the account side of a live exchange. Mock mode
// has no use for it; the engine owns the simulated balance instead.
type BalanceProvider interface {
	GetAccountBalance(ctx context.Context) (map[string]decimal.Decimal, error)
}
