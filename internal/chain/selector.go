package chain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/pricing"
)

// Selection pairs a chosen quote with the delta it was chosen for.
type Selection struct {
	Quote ContractQuote `json:"quote"`
	Delta float64       `json:"delta"`
}

// SelectByTargetDelta returns the contract of the requested kind whose model
// delta lands closest to target.
//
// Per-quote delta comes from the pricing model using the quote's own implied
// volatility when present, otherwise inputs.FallbackVol. Ties on
// |delta - target| break toward the smaller strike, which keeps selection
// deterministic. Quotes whose expiry disagrees with the snapshot's are
// ignored: the selector never returns a contract from a foreign expiry.
//
// Returns ErrEmptyChain when the snapshot holds no usable contract of the
// requested kind, and pricing.ErrInvalidParameter when the market inputs
// cannot price the chain at all.
func SelectByTargetDelta(snap Snapshot, target float64, kind pricing.OptionKind, inputs MarketInputs) (Selection, error) {
	ranked, err := RankByTargetDelta(snap, target, kind, inputs, 1)
	if err != nil {
		return Selection{}, err
	}
	return ranked[0], nil
}

// RankByTargetDelta returns up to n contracts of the requested kind ordered
// by closeness to the target delta, nearest first. Same pricing and
// tie-break rules as SelectByTargetDelta.
func RankByTargetDelta(snap Snapshot, target float64, kind pricing.OptionKind, inputs MarketInputs, n int) ([]Selection, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown option kind %q", pricing.ErrInvalidParameter, kind)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: rank size %d must be positive", pricing.ErrInvalidParameter, n)
	}

	timeToExpiry := yearsBetween(inputs.AsOf, snap.Expiry)
	logger.Debugf("event=rank_chain underlying=%s expiry=%s kind=%s target=%.3f quotes=%d",
		snap.Underlying, snap.Expiry.Format("2006-01-02"), kind, target, len(snap.Quotes))

	candidates := make([]Selection, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		if q.Kind != kind {
			continue
		}
		if !q.Expiry.IsZero() && !sameDay(q.Expiry, snap.Expiry) {
			logger.Tracef("event=skip_foreign_expiry strike=%.2f expiry=%s", q.Strike, q.Expiry.Format("2006-01-02"))
			continue
		}

		vol := q.ImpliedVol
		if vol <= 0 {
			vol = inputs.FallbackVol
		}

		g, err := pricing.PriceAndGreeks(pricing.Params{
			Spot:         inputs.Spot,
			Strike:       q.Strike,
			TimeToExpiry: timeToExpiry,
			Rate:         inputs.Rate,
			Vol:          vol,
			Kind:         kind,
		})
		if err != nil {
			return nil, fmt.Errorf("pricing %s %s %.2f: %w", snap.Underlying, kind, q.Strike, err)
		}

		candidates = append(candidates, Selection{Quote: q, Delta: g.Delta})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: underlying=%s expiry=%s kind=%s",
			ErrEmptyChain, snap.Underlying, snap.Expiry.Format("2006-01-02"), kind)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di := math.Abs(candidates[i].Delta - target)
		dj := math.Abs(candidates[j].Delta - target)
		if di != dj {
			return di < dj
		}
		return candidates[i].Quote.Strike < candidates[j].Quote.Strike
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	best := candidates[0]
	logger.Infof("event=contract_selected underlying=%s kind=%s strike=%.2f delta=%.4f target=%.3f",
		snap.Underlying, kind, best.Quote.Strike, best.Delta, target)

	return candidates[:n], nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
