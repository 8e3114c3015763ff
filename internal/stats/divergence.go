package stats

import "fmt"

// Divergence classification of implied vs historical volatility.
type Divergence string

const (
	Divergent  Divergence = "divergent"
	Convergent Divergence = "convergent"
)

// DefaultDivergenceThreshold is the relative gap beyond which IV and HV are
// considered divergent.
const DefaultDivergenceThreshold = 0.30

// VolStatus is the directional refinement of a divergence check.
type VolStatus string

const (
	VolNormal      VolStatus = "normal"
	VolIVElevated  VolStatus = "iv_elevated"
	VolIVDepressed VolStatus = "iv_depressed"
)

// VolatilityAnalysis is the structured output of AnalyzeVolatility. It
// carries numbers and a status tag only; any phrasing of what to do with an
// elevated IV belongs to the decision layer.
type VolatilityAnalysis struct {
	Symbol  string    `json:"symbol"`
	HV30    float64   `json:"hv_30d"`
	HV60    float64   `json:"hv_60d,omitempty"`
	Implied float64   `json:"iv"`
	Status  VolStatus `json:"status"`
}

// ClassifyDivergence compares implied volatility against a historical
// estimate: Divergent when |iv - hv| / hv exceeds the threshold, Convergent
// otherwise. Both volatilities use the same annualized decimal scale.
//
// hv must be positive and threshold non-negative (ErrInvalidParameter).
func ClassifyDivergence(iv, hv, threshold float64) (Divergence, error) {
	if hv <= 0 {
		return "", fmt.Errorf("%w: historical volatility %v must be positive", ErrInvalidParameter, hv)
	}
	if threshold < 0 {
		return "", fmt.Errorf("%w: threshold %v must be non-negative", ErrInvalidParameter, threshold)
	}

	gap := iv - hv
	if gap < 0 {
		gap = -gap
	}
	if gap/hv > threshold {
		return Divergent, nil
	}
	return Convergent, nil
}

// AnalyzeVolatility computes 30- and 60-period realized volatility from the
// series and tags the implied level as elevated, depressed or normal against
// the 30-period estimate. The 60-period figure is informational and omitted
// when the series is too short for it.
//
// threshold is the relative band around parity (e.g. 0.20 keeps the status
// normal while iv/hv stays within [0.8, 1.2]).
func AnalyzeVolatility(symbol string, series PriceSeries, iv, threshold float64) (VolatilityAnalysis, error) {
	hv30, err := HistoricalVolatility(series, 30, DefaultPeriodsPerYear)
	if err != nil {
		return VolatilityAnalysis{}, err
	}

	out := VolatilityAnalysis{
		Symbol:  symbol,
		HV30:    hv30,
		Implied: iv,
		Status:  VolNormal,
	}

	// best effort, the 30d window already succeeded
	if hv60, err := HistoricalVolatility(series, 60, DefaultPeriodsPerYear); err == nil {
		out.HV60 = hv60
	}

	if hv30 > 0 {
		ratio := iv / hv30
		switch {
		case ratio > 1+threshold:
			out.Status = VolIVElevated
		case ratio < 1-threshold:
			out.Status = VolIVDepressed
		}
	}
	return out, nil
}
