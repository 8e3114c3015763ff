package portfolio

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/trading-assistant/internal/logger"
)

//
// ==========================
// Exposure aggregation
// ==========================
//

// Bias classifies a net greek against a neutrality band.
type Bias string

const (
	Neutral Bias = "neutral"
	Long    Bias = "long"
	Short   Bias = "short"
)

// Bands are the symmetric half-widths inside which a net greek counts as
// neutral.
type Bands struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
}

// DefaultBands suit a small personal account: a net delta within +-10
// shares-equivalent reads as flat.
var DefaultBands = Bands{Delta: 10, Gamma: 1, Vega: 50}

// parallelThreshold is the portfolio size above which aggregation fans out
// across workers. Below it the fold overhead dominates.
const parallelThreshold = 64

// GreekTotals are the summed sensitivities attributed to one symbol.
type GreekTotals struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// SkippedPosition records a position left out of the aggregate and why.
type SkippedPosition struct {
	Position Position `json:"position"`
	Err      error    `json:"-"`
	Reason   string   `json:"reason"`
}

// Exposure is the portfolio-level risk picture: net greeks, the same split
// per symbol, bias classifications, and every position that could not be
// valued.
type Exposure struct {
	NetDelta float64 `json:"net_delta"`
	NetGamma float64 `json:"net_gamma"`
	NetTheta float64 `json:"net_theta"`
	NetVega  float64 `json:"net_vega"`
	NetRho   float64 `json:"net_rho"`

	PerSymbol map[string]GreekTotals `json:"per_symbol"`

	DeltaBias Bias `json:"delta_bias"`
	GammaBias Bias `json:"gamma_bias"`
	VegaBias  Bias `json:"vega_bias"`

	Skipped []SkippedPosition `json:"skipped,omitempty"`
}

// accumulator is the explicit fold state. Field-wise summation keeps the
// result independent of position order, and two accumulators merge the same
// way, which is what lets the parallel path reuse the sequential fold.
type accumulator struct {
	net       GreekTotals
	perSymbol map[string]GreekTotals
	skipped   []SkippedPosition
}

func newAccumulator() *accumulator {
	return &accumulator{perSymbol: make(map[string]GreekTotals)}
}

// fold values one position into the accumulator. A missing symbol is
// recorded and skipped; any other valuation failure aborts the fold.
func (a *accumulator) fold(p Position, ctx MarketContext) error {
	g, err := modelGreeks(p, ctx)
	if err != nil {
		if errors.Is(err, ErrMissingMarketData) {
			logger.Debugf("event=position_skipped symbol=%s reason=%v", p.Symbol, err)
			a.skipped = append(a.skipped, SkippedPosition{
				Position: p,
				Err:      err,
				Reason:   err.Error(),
			})
			return nil
		}
		return fmt.Errorf("valuing %s %s: %w", p.Kind, p.Symbol, err)
	}

	a.net.Delta += g.Delta
	a.net.Gamma += g.Gamma
	a.net.Theta += g.Theta
	a.net.Vega += g.Vega
	a.net.Rho += g.Rho

	t := a.perSymbol[p.Symbol]
	t.Delta += g.Delta
	t.Gamma += g.Gamma
	t.Theta += g.Theta
	t.Vega += g.Vega
	t.Rho += g.Rho
	a.perSymbol[p.Symbol] = t
	return nil
}

// merge absorbs another accumulator field by field.
func (a *accumulator) merge(b *accumulator) {
	a.net.Delta += b.net.Delta
	a.net.Gamma += b.net.Gamma
	a.net.Theta += b.net.Theta
	a.net.Vega += b.net.Vega
	a.net.Rho += b.net.Rho

	for sym, t := range b.perSymbol {
		cur := a.perSymbol[sym]
		cur.Delta += t.Delta
		cur.Gamma += t.Gamma
		cur.Theta += t.Theta
		cur.Vega += t.Vega
		cur.Rho += t.Rho
		a.perSymbol[sym] = cur
	}

	a.skipped = append(a.skipped, b.skipped...)
}

// Aggregate computes net portfolio exposure with DefaultBands.
func Aggregate(positions []Position, ctx MarketContext) (Exposure, error) {
	return AggregateWithBands(positions, ctx, DefaultBands)
}

// AggregateWithBands computes net portfolio exposure, classifying the net
// delta, gamma, and vega against the given neutrality bands.
//
// Positions whose symbol is absent from the market context do not abort the
// aggregation: they are reported in Exposure.Skipped and the remaining book
// still sums. Any other valuation error surfaces to the caller.
//
// Large portfolios aggregate in parallel chunks; summation is field-wise,
// so the result does not depend on position order or chunking.
func AggregateWithBands(positions []Position, ctx MarketContext, bands Bands) (Exposure, error) {
	var acc *accumulator
	var err error

	if len(positions) > parallelThreshold {
		acc, err = foldParallel(positions, ctx)
	} else {
		acc = newAccumulator()
		for _, p := range positions {
			if err = acc.fold(p, ctx); err != nil {
				break
			}
		}
	}
	if err != nil {
		return Exposure{}, err
	}

	exp := Exposure{
		NetDelta:  acc.net.Delta,
		NetGamma:  acc.net.Gamma,
		NetTheta:  acc.net.Theta,
		NetVega:   acc.net.Vega,
		NetRho:    acc.net.Rho,
		PerSymbol: acc.perSymbol,
		DeltaBias: classifyBias(acc.net.Delta, bands.Delta),
		GammaBias: classifyBias(acc.net.Gamma, bands.Gamma),
		VegaBias:  classifyBias(acc.net.Vega, bands.Vega),
		Skipped:   acc.skipped,
	}

	logger.Infof("event=portfolio_aggregated positions=%d skipped=%d net_delta=%.2f net_vega=%.2f bias=%s",
		len(positions), len(exp.Skipped), exp.NetDelta, exp.NetVega, exp.DeltaBias)
	return exp, nil
}

// foldParallel splits the book into per-worker chunks, folds each chunk
// with its own accumulator, and merges the partials.
func foldParallel(positions []Position, ctx MarketContext) (*accumulator, error) {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(positions) {
		workers = len(positions)
	}
	chunk := (len(positions) + workers - 1) / workers

	var mu sync.Mutex
	total := newAccumulator()

	var g errgroup.Group
	for start := 0; start < len(positions); start += chunk {
		end := start + chunk
		if end > len(positions) {
			end = len(positions)
		}
		part := positions[start:end]

		g.Go(func() error {
			acc := newAccumulator()
			for _, p := range part {
				if err := acc.fold(p, ctx); err != nil {
					return err
				}
			}
			mu.Lock()
			total.merge(acc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

// classifyBias places a net greek relative to a symmetric band.
func classifyBias(net, band float64) Bias {
	if math.Abs(net) <= band {
		return Neutral
	}
	if net > 0 {
		return Long
	}
	return Short
}
