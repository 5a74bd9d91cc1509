package balance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds means a trade would drive an asset below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Balance maps asset identifiers to held quantities. No entry is ever
// negative; Apply enforces that before anything is persisted.
type Balance map[string]decimal.Decimal

func (b Balance) Get(asset string) decimal.Decimal {
	return b[asset]
}

func (b Balance) Clone() Balance {
	out := make(Balance, len(b))
	for asset, qty := range b {
		out[asset] = qty
	}
	return out
}

// Assets returns the held asset names in stable order, non-zero first
// criteria left to the caller.
func (b Balance) Assets() []string {
	assets := make([]string, 0, len(b))
	for asset := range b {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Apply computes the post-trade balance without mutating the receiver.
// A buy debits cost from the quote asset and credits quantity to the
// base asset; a sell does the reverse. Both legs move together or the
// call fails and the receiver is untouched.
func (b Balance) Apply(buy bool, baseAsset, quoteAsset string, quantity, cost decimal.Decimal) (Balance, error) {
	next := b.Clone()
	if buy {
		quote := next.Get(quoteAsset).Sub(cost)
		if quote.IsNegative() {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, cost, quoteAsset, b.Get(quoteAsset))
		}
		next[quoteAsset] = quote
		next[baseAsset] = next.Get(baseAsset).Add(quantity)
		return next, nil
	}
	base := next.Get(baseAsset).Sub(quantity)
	if base.IsNegative() {
		return nil, fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientFunds, quantity, baseAsset, b.Get(baseAsset))
	}
	next[baseAsset] = base
	next[quoteAsset] = next.Get(quoteAsset).Add(cost)
	return next, nil
}
