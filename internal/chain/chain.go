// Package chain selects option contracts out of a chain snapshot by target
// sensitivity and resolves strike rules such as ATM offsets or delta
// targets.
//
// A Snapshot is an already-fetched, in-memory view of one expiry of one
// underlying's option chain; the package never talks to a data source.
package chain

import (
	"errors"
	"time"

	"github.com/contactkeval/trading-assistant/internal/pricing"
)

// Typed errors allow callers and tests to detect failure categories
// without string matching.
var (
	// ErrEmptyChain reports a snapshot with no contract of the requested
	// kind.
	ErrEmptyChain = errors.New("no matching contract in chain")

	// ErrInvalidStrikeRule reports a strike rule that cannot be parsed or
	// evaluated.
	ErrInvalidStrikeRule = errors.New("invalid strike rule")
)

// ContractQuote is a single quoted contract inside a snapshot. Open interest
// and volume are informational only and never affect selection.
type ContractQuote struct {
	Strike       float64            `json:"strike"`
	Expiry       time.Time          `json:"expiry"`
	Kind         pricing.OptionKind `json:"kind"`
	Bid          float64            `json:"bid,omitempty"`
	Ask          float64            `json:"ask,omitempty"`
	Last         float64            `json:"last,omitempty"`
	ImpliedVol   float64            `json:"implied_vol,omitempty"`
	OpenInterest int64              `json:"open_interest,omitempty"`
	Volume       int64              `json:"volume,omitempty"`
}

// Mid returns the bid/ask midpoint, falling back to the last trade when one
// side of the book is empty.
func (q ContractQuote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// Snapshot is an ordered-by-strike collection of quotes sharing one expiry
// and one underlying.
type Snapshot struct {
	Underlying string          `json:"underlying"`
	Expiry     time.Time       `json:"expiry"`
	Quotes     []ContractQuote `json:"quotes"`
}

// MarketInputs carries the market context a selection is evaluated under.
// FallbackVol prices quotes that came without an implied volatility
// (typically a realized-volatility estimate from the stats package).
type MarketInputs struct {
	Spot        float64   // current underlying price
	Rate        float64   // annualized risk-free rate
	AsOf        time.Time // evaluation time, anchors time-to-expiry
	FallbackVol float64   // used when a quote has no implied vol
}

// yearsBetween converts the expiry distance to ACT/365 year fractions.
// Negative when the expiry already passed.
func yearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / 365
}
