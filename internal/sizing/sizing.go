package sizing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRisk marks risk parameters outside their allowed range.
	ErrInvalidRisk = errors.New("invalid risk parameters")
	// ErrQuantityTooSmall means the risk budget buys less than one lot.
	ErrQuantityTooSmall = errors.New("quantity below lot size")
)

// RiskParameters drive position sizing. Fractions are plain ratios,
// so a 1% risk is 0.01.
type RiskParameters struct {
	AccountEquity        decimal.Decimal
	RiskFraction         decimal.Decimal
	StopDistanceFraction decimal.Decimal
	Leverage             decimal.Decimal
}

var one = decimal.NewFromInt(1)

// Size computes the order quantity that risks AccountEquity *
// RiskFraction if price moves against the position by
// StopDistanceFraction, floored to the instrument's lot size.
// Deterministic and side effect free.
func Size(params RiskParameters, price, lotSize decimal.Decimal) (decimal.Decimal, error) {
	if err := params.validate(); err != nil {
		return decimal.Decimal{}, err
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be > 0, got %s", ErrInvalidRisk, price)
	}
	if !lotSize.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: lot size must be > 0, got %s", ErrInvalidRisk, lotSize)
	}
	leverage := params.Leverage
	if leverage.IsZero() {
		leverage = one
	}
	riskAmount := params.AccountEquity.Mul(params.RiskFraction)
	quantity := riskAmount.Mul(leverage).Div(price.Mul(params.StopDistanceFraction))
	quantity = floorToLot(quantity, lotSize)
	if !quantity.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: risk budget %s at price %s rounds to zero (lot %s)", ErrQuantityTooSmall, riskAmount, price, lotSize)
	}
	return quantity, nil
}

func (p RiskParameters) validate() error {
	if !p.AccountEquity.IsPositive() {
		return fmt.Errorf("%w: account equity must be > 0, got %s", ErrInvalidRisk, p.AccountEquity)
	}
	if !inUnitInterval(p.RiskFraction) {
		return fmt.Errorf("%w: risk fraction must be in (0, 1], got %s", ErrInvalidRisk, p.RiskFraction)
	}
	if !inUnitInterval(p.StopDistanceFraction) {
		return fmt.Errorf("%w: stop distance fraction must be in (0, 1], got %s", ErrInvalidRisk, p.StopDistanceFraction)
	}
	if !p.Leverage.IsZero() && p.Leverage.LessThan(one) {
		return fmt.Errorf("%w: leverage must be >= 1, got %s", ErrInvalidRisk, p.Leverage)
	}
	return nil
}

func inUnitInterval(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(one)
}

func floorToLot(quantity, lotSize decimal.Decimal) decimal.Decimal {
	return quantity.Div(lotSize).Floor().Mul(lotSize)
}
