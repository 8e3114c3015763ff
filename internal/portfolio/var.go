package portfolio

import (
	"fmt"
	"math"

	"github.com/contactkeval/trading-assistant/internal/pricing"
)

//
// ==========================
// Parametric value-at-risk
// ==========================
//

// VaR is a parametric (variance-covariance) value-at-risk estimate: the
// loss that should only be exceeded with probability 1-Confidence over the
// horizon, under a normal-returns assumption.
type VaR struct {
	Amount         float64 `json:"amount"`
	Percent        float64 `json:"percent"`
	Confidence     float64 `json:"confidence"`
	HorizonDays    int     `json:"horizon_days"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// ParametricVaR computes value-at-risk from a portfolio value and its
// annualized volatility.
//
// The annual vol is de-annualized to daily via sqrt(252), scaled to the
// horizon via sqrt(days), and multiplied by the one-sided z-score for the
// confidence level. Amount is in currency, Percent in percent of value.
//
// Confidence must lie strictly inside (0.5, 1); volatility must be
// non-negative and the horizon at least one day.
func ParametricVaR(value, annualVol, confidence float64, horizonDays int) (VaR, error) {
	if math.IsNaN(value) || math.IsNaN(annualVol) || math.IsNaN(confidence) {
		return VaR{}, fmt.Errorf("%w: NaN input", pricing.ErrInvalidParameter)
	}
	if confidence <= 0.5 || confidence >= 1 {
		return VaR{}, fmt.Errorf("%w: confidence %v must be in (0.5, 1)", pricing.ErrInvalidParameter, confidence)
	}
	if annualVol < 0 {
		return VaR{}, fmt.Errorf("%w: negative volatility %v", pricing.ErrInvalidParameter, annualVol)
	}
	if horizonDays < 1 {
		return VaR{}, fmt.Errorf("%w: horizon %d days must be at least 1", pricing.ErrInvalidParameter, horizonDays)
	}

	z := pricing.NormInv(confidence)
	dailyVol := annualVol / math.Sqrt(252)
	periodVol := dailyVol * math.Sqrt(float64(horizonDays))

	return VaR{
		Amount:         z * periodVol * value,
		Percent:        z * periodVol * 100,
		Confidence:     confidence,
		HorizonDays:    horizonDays,
		PortfolioValue: value,
	}, nil
}
