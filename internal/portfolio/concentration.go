package portfolio

import (
	"errors"
	"math"
	"sort"

	"github.com/contactkeval/trading-assistant/internal/logger"
)

//
// ==========================
// Concentration metrics
// ==========================
//

// Allocation warning thresholds, in percent of total portfolio value.
const (
	warnWeightHigh = 10.0
	warnWeightSoft = 5.0
)

// Holding is one symbol's share of the book, by absolute mark-to-model
// value. Shorts concentrate risk the same as longs, so weights use
// absolute value.
type Holding struct {
	Symbol        string  `json:"symbol"`
	MarketValue   float64 `json:"market_value"`
	WeightPercent float64 `json:"weight_percent"`
}

// ConcentrationWarning flags a holding above an allocation limit.
// Structured, not phrased: rendering is the caller's concern.
type ConcentrationWarning struct {
	Symbol        string  `json:"symbol"`
	WeightPercent float64 `json:"weight_percent"`
	LimitPercent  float64 `json:"limit_percent"`
}

// ConcentrationMetrics summarizes how lopsided the book is.
//
// HHI is the Herfindahl-Hirschman Index: the sum of squared weight
// percentages, 0-10000. A single holding scores 10000; n equal holdings
// score 10000/n. Score normalizes HHI to 0-100, where 0 is the minimum
// possible for the holding count and 100 is a single position.
type ConcentrationMetrics struct {
	Holdings []Holding              `json:"holdings"`
	HHI      float64                `json:"hhi"`
	Score    float64                `json:"score"`
	Warnings []ConcentrationWarning `json:"warnings,omitempty"`
	Skipped  []SkippedPosition      `json:"skipped,omitempty"`
}

// Concentration computes per-symbol weights, HHI, and allocation warnings
// over the mark-to-model value of the book. Positions without market data
// are skipped and reported, same as Aggregate.
func Concentration(positions []Position, ctx MarketContext) (ConcentrationMetrics, error) {
	values := make(map[string]float64)
	var skipped []SkippedPosition
	total := 0.0

	for _, p := range positions {
		mv, err := marketValue(p, ctx)
		if err != nil {
			if errors.Is(err, ErrMissingMarketData) {
				skipped = append(skipped, SkippedPosition{Position: p, Err: err, Reason: err.Error()})
				continue
			}
			return ConcentrationMetrics{}, err
		}
		values[p.Symbol] += math.Abs(mv)
		total += math.Abs(mv)
	}

	if total <= 0 {
		return ConcentrationMetrics{Skipped: skipped}, nil
	}

	holdings := make([]Holding, 0, len(values))
	var warnings []ConcentrationWarning
	hhi := 0.0

	for sym, mv := range values {
		weight := mv / total * 100
		hhi += weight * weight
		holdings = append(holdings, Holding{Symbol: sym, MarketValue: mv, WeightPercent: weight})

		switch {
		case weight > warnWeightHigh:
			warnings = append(warnings, ConcentrationWarning{Symbol: sym, WeightPercent: weight, LimitPercent: warnWeightHigh})
		case weight > warnWeightSoft:
			warnings = append(warnings, ConcentrationWarning{Symbol: sym, WeightPercent: weight, LimitPercent: warnWeightSoft})
		}
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].WeightPercent != holdings[j].WeightPercent {
			return holdings[i].WeightPercent > holdings[j].WeightPercent
		}
		return holdings[i].Symbol < holdings[j].Symbol
	})
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].WeightPercent > warnings[j].WeightPercent
	})

	logger.Debugf("event=concentration holdings=%d hhi=%.1f warnings=%d", len(holdings), hhi, len(warnings))

	return ConcentrationMetrics{
		Holdings: holdings,
		HHI:      hhi,
		Score:    normalizeHHI(hhi, len(values)),
		Warnings: warnings,
		Skipped:  skipped,
	}, nil
}

// normalizeHHI rescales HHI so 0 is the even-weight floor for n holdings
// and 100 is everything in one name.
func normalizeHHI(hhi float64, n int) float64 {
	if n <= 1 {
		return 100
	}
	minHHI := 10000.0 / float64(n)
	score := (hhi - minHHI) / (10000 - minHHI) * 100
	return math.Min(100, math.Max(0, score))
}
