// Package stats computes return series and realized volatility from
// historical prices, and classifies implied-vs-historical volatility
// divergence.
//
// Choices pinned for the whole module:
//   - Log returns feed the volatility estimator (stabler and additive;
//     simple returns are available separately for P&L-style consumers).
//   - Sample standard deviation (n-1 denominator).
//   - 252 trading periods per year for daily data.
//
// Everything here is a pure function over an in-memory series; the caller
// (a market-data collaborator) owns retrieval, retries and caching.
package stats

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultPeriodsPerYear annualizes daily observations.
const DefaultPeriodsPerYear = 252

var (
	// ErrInsufficientData reports a price series too short for the
	// requested computation.
	ErrInsufficientData = errors.New("insufficient price data")

	// ErrInvalidParameter reports malformed numeric input such as a
	// non-positive close in a log-return computation.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// PricePoint is a single close observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered, contiguous sequence of closes, oldest first.
type PriceSeries []PricePoint

// LogReturns computes ln(close_i / close_{i-1}) for each adjacent pair.
//
// Needs at least 2 points (ErrInsufficientData otherwise) and strictly
// positive closes (ErrInvalidParameter otherwise).
func LogReturns(series PriceSeries) ([]float64, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("%w: need >= 2 points for returns, have %d", ErrInsufficientData, len(series))
	}

	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1].Close, series[i].Close
		if prev <= 0 || cur <= 0 {
			return nil, fmt.Errorf("%w: non-positive close at index %d", ErrInvalidParameter, i)
		}
		out = append(out, math.Log(cur/prev))
	}
	return out, nil
}

// SimpleReturns computes close_i / close_{i-1} - 1 for each adjacent pair.
// Needs at least 2 points and non-zero previous closes.
func SimpleReturns(series PriceSeries) ([]float64, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("%w: need >= 2 points for returns, have %d", ErrInsufficientData, len(series))
	}

	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Close
		if prev == 0 {
			return nil, fmt.Errorf("%w: zero close at index %d", ErrInvalidParameter, i-1)
		}
		out = append(out, series[i].Close/prev-1)
	}
	return out, nil
}

// mean of a non-empty slice.
func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdev computes the n-1 standard deviation. Returns 0 for fewer than
// two observations; length checks belong to the callers.
func sampleStdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
