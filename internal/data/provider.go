// Package data holds the market-data collaborators: a Provider interface
// over spot, history, and option-chain snapshots, with a deterministic
// synthetic implementation and a local CSV fixture loader.
//
// Providers hand back fully materialized values from internal/stats and
// internal/chain; the analytics packages never see where the data came
// from. A provider may chain to a secondary that is consulted when it
// cannot serve a request itself.
package data

import (
	"errors"
	"time"

	"github.com/contactkeval/trading-assistant/internal/chain"
	"github.com/contactkeval/trading-assistant/internal/stats"
)

// ErrNoData reports a symbol or expiry the provider has nothing for.
// Callers use it to distinguish "not covered" from a malformed source.
var ErrNoData = errors.New("no data for request")

// Provider supplies market data.
type Provider interface {
	// Secondary returns the fallback provider, or nil.
	Secondary() Provider

	// Spot returns the current underlying price.
	Spot(symbol string) (float64, error)

	// History returns the daily close series, oldest first.
	History(symbol string) (stats.PriceSeries, error)

	// Expiries lists the option expiries available for the symbol.
	Expiries(symbol string) ([]time.Time, error)

	// Chain returns the quote snapshot for one expiry.
	Chain(symbol string, expiry time.Time) (chain.Snapshot, error)
}

// Select builds a provider by name. The csv provider chains to the
// synthetic one so sparse fixture dirs still serve every request.
func Select(name, fixtureDir string) (Provider, error) {
	switch name {
	case "synthetic":
		return NewSyntheticProvider(0), nil
	case "csv":
		return NewCSVProvider(fixtureDir, NewSyntheticProvider(0)), nil
	default:
		return nil, errors.New("unknown provider: " + name)
	}
}
