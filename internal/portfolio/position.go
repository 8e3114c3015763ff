// Package portfolio aggregates per-position sensitivities into net
// portfolio exposure and derives concentration, value-at-risk, and
// mark-to-model summary figures.
//
// All functions are pure over their inputs: positions and market context
// arrive fully materialized, and nothing here fetches, retries, or caches.
// A position whose symbol has no market data is never silently dropped or
// defaulted; it is skipped and reported.
package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/trading-assistant/internal/pricing"
)

// ErrMissingMarketData reports a position whose symbol has no entry in the
// market context.
var ErrMissingMarketData = errors.New("missing market data for symbol")

// PositionKind distinguishes plain equity holdings from option contracts.
type PositionKind string

const (
	Equity PositionKind = "equity"
	Option PositionKind = "option"
)

// DefaultMultiplier is the standard equity option contract size.
const DefaultMultiplier = 100.0

// OptionTerms holds the contract fields an option position needs for
// mark-to-model valuation.
type OptionTerms struct {
	Strike  float64            `json:"strike"`
	Expiry  time.Time          `json:"expiry"`
	OptKind pricing.OptionKind `json:"opt_kind"`
}

// Position is one holding. Quantity is signed: negative means short.
// EntryPrice is kept as a decimal because it feeds P&L accounting, not the
// greeks. Contract is nil for equities. Multiplier zero means
// DefaultMultiplier.
type Position struct {
	Symbol     string          `json:"symbol"`
	Kind       PositionKind    `json:"kind"`
	Quantity   float64         `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Contract   *OptionTerms    `json:"contract,omitempty"`
	Multiplier float64         `json:"multiplier,omitempty"`
}

// multiplier returns the effective contract multiplier: 1 for equities,
// DefaultMultiplier for options that did not set one.
func (p Position) multiplier() float64 {
	if p.Kind != Option {
		return 1
	}
	if p.Multiplier > 0 {
		return p.Multiplier
	}
	return DefaultMultiplier
}

// MarketData is the per-symbol market state a valuation runs against.
// Vol is the annualized volatility used to price option positions
// (implied when available, otherwise a historical estimate).
type MarketData struct {
	Spot float64 `json:"spot"`
	Vol  float64 `json:"vol"`
}

// MarketContext carries everything needed to value a set of positions at
// one instant.
type MarketContext struct {
	AsOf      time.Time             `json:"as_of"`
	Rate      float64               `json:"rate"`
	PerSymbol map[string]MarketData `json:"per_symbol"`
}

// data returns the market data for a symbol, or ErrMissingMarketData.
func (c MarketContext) data(symbol string) (MarketData, error) {
	md, ok := c.PerSymbol[symbol]
	if !ok {
		return MarketData{}, ErrMissingMarketData
	}
	return md, nil
}

// yearsToExpiry converts the expiry distance to ACT/365 year fractions.
func (c MarketContext) yearsToExpiry(expiry time.Time) float64 {
	return expiry.Sub(c.AsOf).Hours() / 24 / 365
}

// modelGreeks prices one position and scales the greeks by signed quantity
// and multiplier. Equities are pure delta: one share moves one-for-one with
// the underlying.
func modelGreeks(p Position, ctx MarketContext) (pricing.GreekSet, error) {
	md, err := ctx.data(p.Symbol)
	if err != nil {
		return pricing.GreekSet{}, err
	}

	if p.Kind == Equity {
		return pricing.GreekSet{
			Price: md.Spot,
			Delta: p.Quantity,
		}, nil
	}

	if p.Contract == nil {
		return pricing.GreekSet{}, errors.New("option position without contract terms")
	}

	g, err := pricing.PriceAndGreeks(pricing.Params{
		Spot:         md.Spot,
		Strike:       p.Contract.Strike,
		TimeToExpiry: ctx.yearsToExpiry(p.Contract.Expiry),
		Rate:         ctx.Rate,
		Vol:          md.Vol,
		Kind:         p.Contract.OptKind,
	})
	if err != nil {
		return pricing.GreekSet{}, err
	}

	scale := p.Quantity * p.multiplier()
	return pricing.GreekSet{
		Price: g.Price,
		Delta: g.Delta * scale,
		Gamma: g.Gamma * scale,
		Theta: g.Theta * scale,
		Vega:  g.Vega * scale,
		Rho:   g.Rho * scale,
	}, nil
}

// marketValue marks one position to model: spot for equities, model price
// for options, times signed quantity and multiplier.
func marketValue(p Position, ctx MarketContext) (float64, error) {
	g, err := modelGreeks(p, ctx)
	if err != nil {
		return 0, err
	}
	return g.Price * p.Quantity * p.multiplier(), nil
}
