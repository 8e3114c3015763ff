// Package pricing implements closed-form European option valuation and the
// numerical inversion of price to implied volatility.
//
// Responsibilities:
//   - Black-Scholes price plus the full analytic greek set
//   - Edge policy at expiry (T<=0) and in the zero-volatility limit
//   - Implied volatility via a bracketed Newton/bisection hybrid
//   - Standard normal CDF/PDF and inverse CDF helpers
//
// Conventions (fixed across the whole module and its tests):
//   - Theta is value decay per YEAR. A long option in a typical regime has
//     negative theta. ThetaPerDay rescales for display.
//   - Vega and rho are per UNIT of volatility / rate (a vega of 37.5 means
//     the price moves 0.375 for a 0.01 move in sigma). VegaPerPercent and
//     RhoPerPercent rescale for display.
//   - Time to expiry is in years.
//
// All functions are pure: no I/O, no shared state, no clocks.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

const sqrt2Pi = 2.5066282746310002

//
// ==========================
// Error taxonomy
// ==========================
//

// Typed errors allow callers and tests to detect failure categories
// without string matching.
var (
	// ErrInvalidParameter reports malformed numeric input: non-positive
	// spot/strike, a non-positive observed price, or NaN/Inf anywhere.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoConvergence reports that the implied volatility search cannot
	// bracket a solution, typically an observed price outside the
	// no-arbitrage range.
	ErrNoConvergence = errors.New("implied volatility did not converge")
)

//
// ==========================
// Domain Types
// ==========================
//

// OptionKind is the two-variant contract tag. All formulas branch on it
// explicitly; there is no dispatch beyond this enum.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// Valid reports whether the kind is one of the two known variants.
func (k OptionKind) Valid() bool { return k == Call || k == Put }

// Params carries the market and contract inputs for a single valuation.
// It is an immutable value: construct a fresh one per pricing call.
type Params struct {
	Spot         float64    // underlying spot price, must be > 0
	Strike       float64    // strike price, must be > 0
	TimeToExpiry float64    // years; <= 0 means at/past expiry
	Rate         float64    // annualized risk-free rate, may be zero or negative
	Vol          float64    // annualized volatility; <= 0 triggers the degenerate branch
	Kind         OptionKind // call or put
}

// GreekSet is the output of a single valuation. Consumers must treat it as
// read-only. Theta is per year; vega and rho are per unit (see package doc).
type GreekSet struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// ThetaPerDay rescales theta to calendar-day decay (ACT/365).
func (g GreekSet) ThetaPerDay() float64 { return g.Theta / 365 }

// VegaPerPercent rescales vega to a one-percentage-point move in volatility.
func (g GreekSet) VegaPerPercent() float64 { return g.Vega / 100 }

// RhoPerPercent rescales rho to a one-percentage-point move in the rate.
func (g GreekSet) RhoPerPercent() float64 { return g.Rho / 100 }

//
// ==========================
// Valuation
// ==========================
//

// PriceAndGreeks values a European option and derives its sensitivities.
//
// Edge policy:
//   - T <= 0: price is exact intrinsic value; delta is 1/0 (calls) or -1/0
//     (puts) by moneyness, with the 0.5 / -0.5 convention at exact S == K;
//     every other greek is 0.
//   - Vol <= 0 with T > 0: deterministic forward. Price is discounted
//     intrinsic against K*exp(-rT); delta is 1/0 (calls) or -1/0 (puts) by
//     forward moneyness; every other greek is 0.
//
// Returns ErrInvalidParameter if spot or strike is non-positive, the kind is
// unknown, or any input is NaN/Inf. Errors are never silently defaulted.
func PriceAndGreeks(p Params) (GreekSet, error) {
	if err := validate(p); err != nil {
		return GreekSet{}, err
	}

	if p.TimeToExpiry <= 0 {
		return expiryGreeks(p), nil
	}
	if p.Vol <= 0 {
		return zeroVolGreeks(p), nil
	}

	sqrtT := math.Sqrt(p.TimeToExpiry)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Vol*p.Vol)*p.TimeToExpiry) / (p.Vol * sqrtT)
	d2 := d1 - p.Vol*sqrtT
	discount := math.Exp(-p.Rate * p.TimeToExpiry)
	pdfD1 := normPDF(d1)

	g := GreekSet{
		Gamma: pdfD1 / (p.Spot * p.Vol * sqrtT),
		Vega:  p.Spot * pdfD1 * sqrtT,
	}

	switch p.Kind {
	case Call:
		nD1 := normCDF(d1)
		nD2 := normCDF(d2)
		g.Price = p.Spot*nD1 - p.Strike*discount*nD2
		g.Delta = nD1
		g.Theta = -(p.Spot*pdfD1*p.Vol)/(2*sqrtT) - p.Rate*p.Strike*discount*nD2
		g.Rho = p.Strike * p.TimeToExpiry * discount * nD2
	case Put:
		nNegD1 := normCDF(-d1)
		nNegD2 := normCDF(-d2)
		g.Price = p.Strike*discount*nNegD2 - p.Spot*nNegD1
		g.Delta = normCDF(d1) - 1
		g.Theta = -(p.Spot*pdfD1*p.Vol)/(2*sqrtT) + p.Rate*p.Strike*discount*nNegD2
		g.Rho = -p.Strike * p.TimeToExpiry * discount * nNegD2
	}

	return g, nil
}

// Intrinsic returns the undiscounted exercise value for the given kind.
func Intrinsic(spot, strike float64, kind OptionKind) float64 {
	if kind == Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

// expiryGreeks implements the T<=0 branch: exact intrinsic value, delta by
// moneyness with the half convention at exact equality, all else zero.
func expiryGreeks(p Params) GreekSet {
	g := GreekSet{Price: Intrinsic(p.Spot, p.Strike, p.Kind)}

	switch p.Kind {
	case Call:
		switch {
		case p.Spot > p.Strike:
			g.Delta = 1
		case p.Spot < p.Strike:
			g.Delta = 0
		default:
			g.Delta = 0.5
		}
	case Put:
		switch {
		case p.Spot < p.Strike:
			g.Delta = -1
		case p.Spot > p.Strike:
			g.Delta = 0
		default:
			g.Delta = -0.5
		}
	}
	return g
}

// zeroVolGreeks implements the Vol<=0, T>0 branch: the underlying drifts
// deterministically at the risk-free rate, so the option is worth intrinsic
// against the discounted strike and delta collapses to 0 or 1
// (0 or -1 for puts) by forward moneyness.
func zeroVolGreeks(p Params) GreekSet {
	discK := p.Strike * math.Exp(-p.Rate*p.TimeToExpiry)
	g := GreekSet{Price: Intrinsic(p.Spot, discK, p.Kind)}

	switch p.Kind {
	case Call:
		if p.Spot > discK {
			g.Delta = 1
		}
	case Put:
		if p.Spot < discK {
			g.Delta = -1
		}
	}
	return g
}

func validate(p Params) error {
	for _, v := range [...]float64{p.Spot, p.Strike, p.TimeToExpiry, p.Rate, p.Vol} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite input", ErrInvalidParameter)
		}
	}
	if p.Spot <= 0 {
		return fmt.Errorf("%w: spot %v must be positive", ErrInvalidParameter, p.Spot)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("%w: strike %v must be positive", ErrInvalidParameter, p.Strike)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown option kind %q", ErrInvalidParameter, p.Kind)
	}
	return nil
}

//
// ==========================
// Strike from delta
// ==========================
//

// StrikeFromDelta inverts the call delta N(d1) analytically to the strike
// whose delta equals target under the given market inputs. For puts the
// target is the usual negative delta; internally it maps to the equivalent
// call delta target + 1.
//
// Returns ErrInvalidParameter when the target is outside the open delta
// range for the kind, or when vol/time are non-positive (there is no smooth
// delta curve to invert in the degenerate branches).
func StrikeFromDelta(spot, target, rate, vol, timeToExpiry float64, kind OptionKind) (float64, error) {
	if spot <= 0 || vol <= 0 || timeToExpiry <= 0 {
		return 0, fmt.Errorf("%w: strike-from-delta needs positive spot, vol and time", ErrInvalidParameter)
	}

	callTarget := target
	if kind == Put {
		callTarget = target + 1
	}
	if callTarget <= 0 || callTarget >= 1 {
		return 0, fmt.Errorf("%w: unreachable target delta %v", ErrInvalidParameter, target)
	}

	sqrtT := math.Sqrt(timeToExpiry)
	d1 := NormInv(callTarget)
	return spot * math.Exp(-(d1*vol*sqrtT - (rate+0.5*vol*vol)*timeToExpiry)), nil
}

//
// ==========================
// Normal distribution helpers
// ==========================
//

// normPDF calculates the probability density function (PDF) of the standard
// normal distribution at x: exp(-0.5 * x^2) / sqrt(2*pi).
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}

// normCDF computes the cumulative distribution function of the standard
// normal distribution using the error function. The result is the
// probability that a standard normal variable is <= x.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// NormInv computes the inverse of the standard normal cumulative
// distribution function (quantile function). It returns x such that the
// cumulative probability at x equals p.
//
// The rational approximation follows Wichura's method and is accurate across
// the full valid range. It backs both delta-to-strike inversion and the
// parametric VaR z-score.
//
// Panics if p is not strictly between 0 and 1.
//
// Example:
//
//	NormInv(0.975) // approximately 1.96
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		panic("NormInv: p must be in (0,1)")
	}

	// Coefficients
	a := []float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}

	b := []float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}

	c := []float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}

	d := []float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}

	plow := 0.02425
	phigh := 1 - plow

	var q, r float64

	if p < plow {
		q = math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}

	if p > phigh {
		q = math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}

	q = p - 0.5
	r = q * q
	return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
		(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
}
