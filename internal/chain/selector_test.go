package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/trading-assistant/internal/pricing"
)

var (
	asOf   = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	expiry = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
)

// deltaLadderSnapshot builds a call chain whose model deltas land exactly on
// the given ladder, by inverting delta to strike under one flat vol.
func deltaLadderSnapshot(t *testing.T, deltas []float64, spot, rate, vol float64) Snapshot {
	t.Helper()

	tt := yearsBetween(asOf, expiry)
	quotes := make([]ContractQuote, 0, len(deltas))
	for _, d := range deltas {
		strike, err := pricing.StrikeFromDelta(spot, d, rate, vol, tt, pricing.Call)
		require.NoError(t, err)
		quotes = append(quotes, ContractQuote{
			Strike:     strike,
			Expiry:     expiry,
			Kind:       pricing.Call,
			ImpliedVol: vol,
		})
	}
	return Snapshot{Underlying: "SPY", Expiry: expiry, Quotes: quotes}
}

func TestSelectByTargetDeltaLadder(t *testing.T) {
	// ladder from the canonical scenario: target 0.5 must pick the
	// 0.48-delta contract
	deltas := []float64{0.82, 0.65, 0.48, 0.30}
	snap := deltaLadderSnapshot(t, deltas, 100, 0.05, 0.3)
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf}

	sel, err := SelectByTargetDelta(snap, 0.5, pricing.Call, inputs)
	require.NoError(t, err)

	assert.InDelta(t, 0.48, sel.Delta, 1e-6)
	assert.Equal(t, snap.Quotes[2].Strike, sel.Quote.Strike)
}

func TestSelectByTargetDeltaPuts(t *testing.T) {
	quotes := []ContractQuote{
		{Strike: 90, Expiry: expiry, Kind: pricing.Put, ImpliedVol: 0.25},
		{Strike: 100, Expiry: expiry, Kind: pricing.Put, ImpliedVol: 0.25},
		{Strike: 110, Expiry: expiry, Kind: pricing.Put, ImpliedVol: 0.25},
	}
	snap := Snapshot{Underlying: "SPY", Expiry: expiry, Quotes: quotes}
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf}

	sel, err := SelectByTargetDelta(snap, -0.9, pricing.Put, inputs)
	require.NoError(t, err)

	// the deepest ITM put carries the most negative delta
	assert.Equal(t, 110.0, sel.Quote.Strike)
	assert.Less(t, sel.Delta, -0.5)
}

func TestSelectByTargetDeltaTieBreaksSmallerStrike(t *testing.T) {
	// zero vol makes call deltas exactly 1 (ITM) and 0 (OTM), so both sit
	// exactly 0.5 from the target and the tie must break to the lower strike
	quotes := []ContractQuote{
		{Strike: 110, Expiry: expiry, Kind: pricing.Call},
		{Strike: 90, Expiry: expiry, Kind: pricing.Call},
	}
	snap := Snapshot{Underlying: "SPY", Expiry: expiry, Quotes: quotes}
	inputs := MarketInputs{Spot: 100, Rate: 0, AsOf: asOf, FallbackVol: 0}

	sel, err := SelectByTargetDelta(snap, 0.5, pricing.Call, inputs)
	require.NoError(t, err)
	assert.Equal(t, 90.0, sel.Quote.Strike)
}

func TestSelectByTargetDeltaEmptyChain(t *testing.T) {
	snap := Snapshot{
		Underlying: "SPY",
		Expiry:     expiry,
		Quotes: []ContractQuote{
			{Strike: 95, Expiry: expiry, Kind: pricing.Put, ImpliedVol: 0.3},
			{Strike: 105, Expiry: expiry, Kind: pricing.Put, ImpliedVol: 0.3},
		},
	}
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf}

	_, err := SelectByTargetDelta(snap, 0.5, pricing.Call, inputs)
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = SelectByTargetDelta(Snapshot{Underlying: "SPY", Expiry: expiry}, 0.5, pricing.Call, inputs)
	assert.ErrorIs(t, err, ErrEmptyChain)
}

func TestSelectByTargetDeltaIgnoresForeignExpiry(t *testing.T) {
	otherExpiry := expiry.AddDate(0, 1, 0)
	quotes := []ContractQuote{
		// would be a perfect hit, but belongs to another expiry
		{Strike: 100, Expiry: otherExpiry, Kind: pricing.Call, ImpliedVol: 0.3},
		{Strike: 130, Expiry: expiry, Kind: pricing.Call, ImpliedVol: 0.3},
	}
	snap := Snapshot{Underlying: "SPY", Expiry: expiry, Quotes: quotes}
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf}

	sel, err := SelectByTargetDelta(snap, 0.5, pricing.Call, inputs)
	require.NoError(t, err)
	assert.Equal(t, 130.0, sel.Quote.Strike)
	assert.True(t, sameDay(sel.Quote.Expiry, snap.Expiry))
}

func TestSelectByTargetDeltaFallbackVol(t *testing.T) {
	// no implied vol on the quote: the caller-supplied historical estimate
	// must price it
	quotes := []ContractQuote{{Strike: 100, Expiry: expiry, Kind: pricing.Call}}
	snap := Snapshot{Underlying: "SPY", Expiry: expiry, Quotes: quotes}
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf, FallbackVol: 0.2}

	sel, err := SelectByTargetDelta(snap, 0.5, pricing.Call, inputs)
	require.NoError(t, err)

	g, err := pricing.PriceAndGreeks(pricing.Params{
		Spot: 100, Strike: 100, TimeToExpiry: yearsBetween(asOf, expiry),
		Rate: 0.05, Vol: 0.2, Kind: pricing.Call,
	})
	require.NoError(t, err)
	assert.InDelta(t, g.Delta, sel.Delta, 1e-12)
}

func TestRankByTargetDelta(t *testing.T) {
	deltas := []float64{0.82, 0.65, 0.48, 0.30}
	snap := deltaLadderSnapshot(t, deltas, 100, 0.05, 0.3)
	inputs := MarketInputs{Spot: 100, Rate: 0.05, AsOf: asOf}

	ranked, err := RankByTargetDelta(snap, 0.5, pricing.Call, inputs, 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.InDelta(t, 0.48, ranked[0].Delta, 1e-6)
	assert.InDelta(t, 0.65, ranked[1].Delta, 1e-6)
	assert.InDelta(t, 0.30, ranked[2].Delta, 1e-6)

	// n larger than the chain truncates
	all, err := RankByTargetDelta(snap, 0.5, pricing.Call, inputs, 50)
	require.NoError(t, err)
	assert.Len(t, all, len(deltas))

	_, err = RankByTargetDelta(snap, 0.5, pricing.Call, inputs, 0)
	assert.ErrorIs(t, err, pricing.ErrInvalidParameter)

	_, err = RankByTargetDelta(snap, 0.5, "spread", inputs, 1)
	assert.ErrorIs(t, err, pricing.ErrInvalidParameter)
}
