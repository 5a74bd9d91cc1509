package portfolio

import (
	"context"
	"errors"
	"fmt"

	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Position is one asset's slice of the portfolio. PriceKnown is false
// when the price source could not value the asset; its Value is then
// excluded from the summary total rather than counted as zero.
type Position struct {
	Asset      string          `json:"asset"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Value      decimal.Decimal `json:"value"`
	PriceKnown bool            `json:"price_known"`
}

type Summary struct {
	Positions  []Position      `json:"positions"`
	TotalValue decimal.Decimal `json:"total_value"`
	// Partial is set when at least one position could not be valued,
	// so TotalValue understates the portfolio.
	Partial bool `json:"partial"`
}

// View derives valuation summaries from the balance store and the
// price source. Read only; it never mutates either.
type View struct {
	balances   *balance.Store
	source     pricing.Source
	quoteAsset string
	log        *zap.Logger
}

func NewView(balances *balance.Store, source pricing.Source, quoteAsset string, log *zap.Logger) *View {
	return &View{balances: balances, source: source, quoteAsset: quoteAsset, log: log}
}

// Summarize values every non-zero asset at its current price. The
// quote asset has unit price 1 by definition. A price fetch failing
// for one asset degrades the summary to partial instead of failing it.
func (v *View) Summarize(ctx context.Context) (Summary, error) {
	bal, err := v.balances.Load(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{TotalValue: decimal.Zero}
	for _, asset := range bal.Assets() {
		quantity := bal.Get(asset)
		if quantity.IsZero() {
			continue
		}
		pos := Position{Asset: asset, Quantity: quantity}
		if asset == v.quoteAsset {
			pos.UnitPrice = decimal.NewFromInt(1)
			pos.Value = quantity
			pos.PriceKnown = true
		} else {
			price, err := v.source.GetPrice(ctx, asset+v.quoteAsset)
			switch {
			case err == nil:
				pos.UnitPrice = price
				pos.Value = quantity.Mul(price)
				pos.PriceKnown = true
			case errors.Is(err, pricing.ErrUnavailable), errors.Is(err, pricing.ErrUnknownSymbol):
				v.log.Warn("asset left unvalued in summary", zap.String("asset", asset), zap.Error(err))
				summary.Partial = true
			default:
				return Summary{}, fmt.Errorf("pricing %s: %w", asset, err)
			}
		}
		if pos.PriceKnown {
			summary.TotalValue = summary.TotalValue.Add(pos.Value)
		}
		summary.Positions = append(summary.Positions, pos)
	}
	return summary, nil
}
