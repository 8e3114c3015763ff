package pricing

import (
	"fmt"
	"math"
)

// Solver tuning. The iteration ceiling bounds termination without any
// external cancellation; the tolerance is absolute in price space.
const (
	ivBracketLo = 1e-4
	ivBracketHi = 5.0
	ivPriceTol  = 1e-4
	ivMaxIter   = 100
	ivVegaFloor = 1e-8
)

// solverState drives the implied volatility search. The search is an
// explicit state machine rather than nested conditional retries so the
// iteration-count guarantee stays auditable.
type solverState int

const (
	stateBracketing solverState = iota // validate range, establish [lo, hi]
	stateNewton                        // refine with Newton, bisect on bad steps
	stateConverged
	stateFailed
)

// ImpliedVol recovers the volatility at which the model price equals the
// observed market price. The Vol field of p is ignored.
//
// Method: the search brackets sigma in [1e-4, 5.0] and refines with
// Newton-Raphson using the analytic vega as derivative. A Newton step that
// escapes the bracket, or a vega too close to zero, falls back to a
// bisection step; the bracket shrinks every iteration either way. The search
// stops when |model - observed| < 1e-4 or after 100 iterations.
//
// Errors:
//   - ErrInvalidParameter: observed <= 0, T <= 0 (price carries no
//     volatility information at expiry), or malformed Params.
//   - ErrNoConvergence: observed price outside the achievable range
//     (below discounted intrinsic or above the model's upper bound), or the
//     iteration ceiling was hit. A meaningless value is never returned.
func ImpliedVol(observed float64, p Params) (float64, error) {
	if math.IsNaN(observed) || math.IsInf(observed, 0) || observed <= 0 {
		return 0, fmt.Errorf("%w: observed price %v must be positive", ErrInvalidParameter, observed)
	}
	if err := validate(p); err != nil {
		return 0, err
	}
	if p.TimeToExpiry <= 0 {
		return 0, fmt.Errorf("%w: cannot invert price at or past expiry", ErrInvalidParameter)
	}

	// price(sigma) - observed, monotone increasing in sigma
	residual := func(sigma float64) (float64, float64, error) {
		q := p
		q.Vol = sigma
		g, err := PriceAndGreeks(q)
		if err != nil {
			return 0, 0, err
		}
		return g.Price - observed, g.Vega, nil
	}

	var (
		state     = stateBracketing
		lo        = ivBracketLo
		hi        = ivBracketHi
		sigma     float64
		fSigma    float64
		vegaSigma float64
	)

	for iter := 0; iter < ivMaxIter; iter++ {
		switch state {

		case stateBracketing:
			fLo, _, err := residual(lo)
			if err != nil {
				return 0, err
			}
			fHi, _, err := residual(hi)
			if err != nil {
				return 0, err
			}

			switch {
			case math.Abs(fLo) < ivPriceTol:
				return lo, nil
			case math.Abs(fHi) < ivPriceTol:
				return hi, nil
			case fLo > 0:
				// observed below anything the model can produce:
				// under discounted intrinsic or simply sub-bracket
				state = stateFailed
			case fHi < 0:
				// above the model's upper bound (S for calls,
				// K*exp(-rT) for puts)
				state = stateFailed
			default:
				sigma = 0.5 * (lo + hi)
				state = stateNewton
			}

		case stateNewton:
			var err error
			fSigma, vegaSigma, err = residual(sigma)
			if err != nil {
				return 0, err
			}
			if math.Abs(fSigma) < ivPriceTol {
				state = stateConverged
				break
			}

			// shrink the bracket around the root
			if fSigma > 0 {
				hi = sigma
			} else {
				lo = sigma
			}

			next := sigma - fSigma/vegaSigma
			if vegaSigma < ivVegaFloor || next <= lo || next >= hi || math.IsNaN(next) {
				// Newton is unreliable here; bisect instead
				next = 0.5 * (lo + hi)
			}
			sigma = next

		case stateConverged:
			return sigma, nil

		case stateFailed:
			return 0, fmt.Errorf("%w: observed price %v outside achievable range", ErrNoConvergence, observed)
		}
	}

	if state == stateConverged {
		return sigma, nil
	}
	return 0, fmt.Errorf("%w: no solution within %d iterations", ErrNoConvergence, ivMaxIter)
}
