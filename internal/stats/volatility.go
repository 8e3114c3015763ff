package stats

import (
	"fmt"
	"math"
)

// HistoricalVolatility estimates annualized realized volatility as the
// sample standard deviation of the trailing `window` log returns scaled by
// sqrt(periodsPerYear). Pass DefaultPeriodsPerYear for daily closes.
//
// A window of w returns consumes w+1 price points; shorter series fail with
// ErrInsufficientData. Window must be >= 2 (a single return has no spread).
func HistoricalVolatility(series PriceSeries, window, periodsPerYear int) (float64, error) {
	if window < 2 {
		return 0, fmt.Errorf("%w: window %d must be >= 2", ErrInvalidParameter, window)
	}
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("%w: periods per year %d must be positive", ErrInvalidParameter, periodsPerYear)
	}
	if len(series) < window+1 {
		return 0, fmt.Errorf("%w: window %d needs %d points, have %d",
			ErrInsufficientData, window, window+1, len(series))
	}

	rets, err := LogReturns(series[len(series)-window-1:])
	if err != nil {
		return 0, err
	}
	return sampleStdev(rets) * math.Sqrt(float64(periodsPerYear)), nil
}

// Beta regresses an asset's simple returns against a benchmark's:
// cov(asset, bench) / var(bench) over date-aligned observations.
//
// Points are matched by calendar date; at least 20 aligned return pairs are
// required (ErrInsufficientData otherwise). A flat benchmark (zero variance)
// fails with ErrInvalidParameter.
func Beta(asset, benchmark PriceSeries) (float64, error) {
	aligned := alignByDate(asset, benchmark)
	if len(aligned) < 21 {
		return 0, fmt.Errorf("%w: beta needs >= 21 aligned points, have %d", ErrInsufficientData, len(aligned))
	}

	assetRets := make([]float64, 0, len(aligned)-1)
	benchRets := make([]float64, 0, len(aligned)-1)
	for i := 1; i < len(aligned); i++ {
		if aligned[i-1].assetClose == 0 || aligned[i-1].benchClose == 0 {
			return 0, fmt.Errorf("%w: zero close in aligned series", ErrInvalidParameter)
		}
		assetRets = append(assetRets, aligned[i].assetClose/aligned[i-1].assetClose-1)
		benchRets = append(benchRets, aligned[i].benchClose/aligned[i-1].benchClose-1)
	}

	mA, mB := mean(assetRets), mean(benchRets)
	var cov, varB float64
	for i := range assetRets {
		cov += (assetRets[i] - mA) * (benchRets[i] - mB)
		varB += (benchRets[i] - mB) * (benchRets[i] - mB)
	}
	n := float64(len(assetRets) - 1)
	cov /= n
	varB /= n

	if varB == 0 {
		return 0, fmt.Errorf("%w: benchmark variance is zero", ErrInvalidParameter)
	}
	return cov / varB, nil
}

type alignedPoint struct {
	assetClose float64
	benchClose float64
}

// alignByDate intersects two series on calendar date (YYYY-MM-DD), keeping
// the asset's ordering.
func alignByDate(asset, benchmark PriceSeries) []alignedPoint {
	byDate := make(map[string]float64, len(benchmark))
	for _, p := range benchmark {
		byDate[p.Date.Format("2006-01-02")] = p.Close
	}

	out := make([]alignedPoint, 0, len(asset))
	for _, p := range asset {
		if b, ok := byDate[p.Date.Format("2006-01-02")]; ok {
			out = append(out, alignedPoint{assetClose: p.Close, benchClose: b})
		}
	}
	return out
}
