package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/trading-assistant/internal/pricing"
)

func TestSyntheticHistoryDeterministic(t *testing.T) {
	p := NewSyntheticProvider(42)

	a, err := p.History("SPY")
	require.NoError(t, err)
	b, err := p.History("SPY")
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))

	for i := range a {
		assert.Equal(t, a[i].Close, b[i].Close, "point %d", i)
	}

	// a different symbol walks a different path
	c, err := p.History("AAPL")
	require.NoError(t, err)
	assert.NotEqual(t, a[len(a)-1].Close, c[len(c)-1].Close)

	for _, pt := range a {
		assert.Positive(t, pt.Close)
		assert.NotEqual(t, time.Saturday, pt.Date.Weekday())
		assert.NotEqual(t, time.Sunday, pt.Date.Weekday())
	}
}

func TestSyntheticSpotMatchesHistory(t *testing.T) {
	p := NewSyntheticProvider(7)

	series, err := p.History("QQQ")
	require.NoError(t, err)
	spot, err := p.Spot("QQQ")
	require.NoError(t, err)
	assert.Equal(t, series[len(series)-1].Close, spot)
}

func TestSyntheticChainConsistent(t *testing.T) {
	p := NewSyntheticProvider(7)

	expiries, err := p.Expiries("SPY")
	require.NoError(t, err)
	require.NotEmpty(t, expiries)

	snap, err := p.Chain("SPY", expiries[0])
	require.NoError(t, err)
	require.NotEmpty(t, snap.Quotes)
	assert.Equal(t, "SPY", snap.Underlying)

	spot, err := p.Spot("SPY")
	require.NoError(t, err)

	for _, q := range snap.Quotes {
		assert.Positive(t, q.Strike)
		assert.Positive(t, q.ImpliedVol)
		assert.GreaterOrEqual(t, q.Ask, q.Bid, "strike %v", q.Strike)
		assert.True(t, q.Kind == pricing.Call || q.Kind == pricing.Put)

		// mid must round-trip through the model at the quoted vol
		tt := q.Expiry.Sub(time.Now().UTC()).Hours() / 24 / 365
		g, err := pricing.PriceAndGreeks(pricing.Params{
			Spot: spot, Strike: q.Strike, TimeToExpiry: tt,
			Rate: synthRate, Vol: q.ImpliedVol, Kind: q.Kind,
		})
		require.NoError(t, err)
		assert.InDelta(t, g.Price, q.Last, 0.02)
	}
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCSVHistory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.csv",
		"date,close\n2026-01-02,100.0\n2026-01-05,101.5\n2026-01-06,100.75\n")

	p := NewCSVProvider(dir, nil)

	series, err := p.History("spy")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 100.0, series[0].Close)
	assert.Equal(t, 100.75, series[2].Close)

	spot, err := p.Spot("SPY")
	require.NoError(t, err)
	assert.Equal(t, 100.75, spot)
}

func TestCSVHistorySortsByDate(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY.csv",
		"2026-01-06,102\n2026-01-02,100\n2026-01-05,101\n")

	p := NewCSVProvider(dir, nil)
	series, err := p.History("SPY")
	require.NoError(t, err)
	assert.Equal(t, 100.0, series[0].Close)
	assert.Equal(t, 102.0, series[2].Close)
}

func TestCSVChainAndExpiries(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "SPY_chain_2026-06-19.csv",
		"strike,kind,bid,ask,last,iv,open_interest,volume\n"+
			"105,call,2.10,2.20,2.15,0.21,1500,300\n"+
			"100,call,4.90,5.10,5.00,0.22,2000,450\n"+
			"100,put,4.40,4.60,4.50,0.23,1800,200\n")
	writeFixture(t, dir, "SPY_chain_2026-07-17.csv",
		"strike,kind,bid,ask,last,iv\n100,call,6.0,6.2,6.1,0.22\n")

	p := NewCSVProvider(dir, nil)

	expiries, err := p.Expiries("SPY")
	require.NoError(t, err)
	require.Len(t, expiries, 2)
	assert.Equal(t, time.Date(2026, time.June, 19, 0, 0, 0, 0, time.UTC), expiries[0])

	snap, err := p.Chain("SPY", expiries[0])
	require.NoError(t, err)
	require.Len(t, snap.Quotes, 3)

	// sorted by strike
	assert.Equal(t, 100.0, snap.Quotes[0].Strike)
	assert.Equal(t, 105.0, snap.Quotes[2].Strike)
	assert.Equal(t, pricing.Call, snap.Quotes[2].Kind)
	assert.Equal(t, 0.21, snap.Quotes[2].ImpliedVol)
	assert.Equal(t, int64(1500), snap.Quotes[2].OpenInterest)
	assert.InDelta(t, 2.15, snap.Quotes[2].Mid(), 1e-9)

	for _, q := range snap.Quotes {
		assert.True(t, q.Expiry.Equal(expiries[0]))
	}
}

func TestCSVMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "BAD.csv", "date,close\nnot-a-date,100\n")
	writeFixture(t, dir, "BAD_chain_2026-06-19.csv", "strike,kind,bid,ask,last,iv\n100,straddle,1,2,1.5,0.2\n")

	p := NewCSVProvider(dir, nil)

	_, err := p.History("BAD")
	assert.Error(t, err)

	_, err = p.Chain("BAD", time.Date(2026, time.June, 19, 0, 0, 0, 0, time.UTC))
	assert.ErrorContains(t, err, "unknown option kind")
}

func TestCSVFallsBackToSecondary(t *testing.T) {
	dir := t.TempDir()
	p := NewCSVProvider(dir, NewSyntheticProvider(42))

	series, err := p.History("SPY")
	require.NoError(t, err)
	assert.NotEmpty(t, series)

	// no secondary: missing file is an error
	bare := NewCSVProvider(dir, nil)
	_, err = bare.History("SPY")
	assert.Error(t, err)

	_, err = bare.Expiries("SPY")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSelect(t *testing.T) {
	p, err := Select("synthetic", "")
	require.NoError(t, err)
	assert.Nil(t, p.Secondary())

	p, err = Select("csv", t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, p.Secondary())

	_, err = Select("massive", "")
	assert.Error(t, err)
}
