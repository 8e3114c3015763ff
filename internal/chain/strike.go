package chain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/pricing"
)

//
// ==========================
// Strike rule resolution
// ==========================
//

// ResolveStrikeRule converts a strike rule into a concrete listed strike
// from the snapshot.
//
// Supported formats:
//   - ATM
//   - ATM:+10, ATM:-5%
//   - ABS:600
//   - DELTA:0.30  (signed target for puts, e.g. DELTA:-0.30)
//   - arithmetic expressions over {SPOT}, e.g. {SPOT}*1.05+2
//
// The computed level snaps to the nearest strike listed for the requested
// kind, so the result is always tradeable within the snapshot.
func ResolveStrikeRule(rule string, snap Snapshot, kind pricing.OptionKind, inputs MarketInputs) (float64, error) {
	rule = strings.TrimSpace(strings.ToUpper(rule))
	logger.Debugf("event=resolve_strike_rule rule=%s underlying=%s", rule, snap.Underlying)

	if rule == "ATM" {
		return nearestListedStrike(snap, kind, inputs.Spot)
	}

	if off, ok := strings.CutPrefix(rule, "ATM:"); ok {
		target, err := applyATMOffset(off, inputs.Spot)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeRule, rule, err)
		}
		return nearestListedStrike(snap, kind, target)
	}

	if abs, ok := strings.CutPrefix(rule, "ABS:"); ok {
		target, err := strconv.ParseFloat(abs, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeRule, rule, err)
		}
		return nearestListedStrike(snap, kind, target)
	}

	if deltaStr, ok := strings.CutPrefix(rule, "DELTA:"); ok {
		target, err := strconv.ParseFloat(deltaStr, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeRule, rule, err)
		}
		sel, err := SelectByTargetDelta(snap, target, kind, inputs)
		if err != nil {
			return 0, err
		}
		return sel.Quote.Strike, nil
	}

	// Expression over the spot price
	if strings.Contains(rule, "{SPOT}") {
		target, err := evaluateSpotExpression(rule, inputs.Spot)
		if err != nil {
			return 0, err
		}
		return nearestListedStrike(snap, kind, target)
	}

	return 0, fmt.Errorf("%w: %s", ErrInvalidStrikeRule, rule)
}

// applyATMOffset applies an absolute or percentage offset to the spot,
// rounded to cents.
func applyATMOffset(offset string, spot float64) (float64, error) {
	if pctStr, ok := strings.CutSuffix(offset, "%"); ok {
		pct, err := strconv.ParseFloat(pctStr, 64)
		if err != nil {
			return 0, err
		}
		return math.Round((spot+spot*pct/100)*100) / 100, nil
	}

	abs, err := strconv.ParseFloat(offset, 64)
	if err != nil {
		return 0, err
	}
	return math.Round((spot+abs)*100) / 100, nil
}

// evaluateSpotExpression substitutes {SPOT} and evaluates the remaining
// arithmetic with govaluate.
func evaluateSpotExpression(expr string, spot float64) (float64, error) {
	evalStr := strings.ReplaceAll(expr, "{SPOT}", strconv.FormatFloat(spot, 'f', -1, 64))

	evalExpr, err := govaluate.NewEvaluableExpression(evalStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeRule, expr, err)
	}

	result, err := evalExpr.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeRule, expr, err)
	}

	val, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s: non-numeric result", ErrInvalidStrikeRule, expr)
	}
	return val, nil
}

// nearestListedStrike snaps a target level to the closest strike quoted for
// the kind, using binary search over the sorted distinct strikes. The lower
// strike wins exact midpoints.
func nearestListedStrike(snap Snapshot, kind pricing.OptionKind, target float64) (float64, error) {
	seen := make(map[float64]struct{})
	strikes := make([]float64, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		if q.Kind != kind {
			continue
		}
		if _, ok := seen[q.Strike]; ok {
			continue
		}
		seen[q.Strike] = struct{}{}
		strikes = append(strikes, q.Strike)
	}
	if len(strikes) == 0 {
		return 0, fmt.Errorf("%w: underlying=%s kind=%s", ErrEmptyChain, snap.Underlying, kind)
	}
	sort.Float64s(strikes)

	i := sort.Search(len(strikes), func(i int) bool { return strikes[i] >= target })
	if i == 0 {
		return strikes[0], nil
	}
	if i == len(strikes) {
		return strikes[len(strikes)-1], nil
	}

	before, after := strikes[i-1], strikes[i]
	if target-before <= after-target {
		return before, nil
	}
	return after, nil
}
