package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/trading-assistant/internal/portfolio"
	"github.com/contactkeval/trading-assistant/internal/pricing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	equity := portfolio.Position{
		Symbol:     "AAPL",
		Kind:       portfolio.Equity,
		Quantity:   100,
		EntryPrice: decimal.RequireFromString("178.35"),
	}
	option := portfolio.Position{
		Symbol:     "SPY",
		Kind:       portfolio.Option,
		Quantity:   -2,
		EntryPrice: decimal.RequireFromString("4.15"),
		Multiplier: 100,
		Contract: &portfolio.OptionTerms{
			Strike:  480,
			Expiry:  time.Date(2026, time.September, 18, 0, 0, 0, 0, time.UTC),
			OptKind: pricing.Put,
		},
	}

	_, err := s.Insert(ctx, equity)
	require.NoError(t, err)
	_, err = s.Insert(ctx, option)
	require.NoError(t, err)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// ordered by symbol
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, portfolio.Equity, got[0].Kind)
	assert.True(t, got[0].EntryPrice.Equal(equity.EntryPrice))
	assert.Nil(t, got[0].Contract)

	assert.Equal(t, "SPY", got[1].Symbol)
	assert.Equal(t, -2.0, got[1].Quantity)
	require.NotNil(t, got[1].Contract)
	assert.Equal(t, 480.0, got[1].Contract.Strike)
	assert.Equal(t, pricing.Put, got[1].Contract.OptKind)
	assert.True(t, got[1].Contract.Expiry.Equal(option.Contract.Expiry))
}

func TestStoreUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, portfolio.Position{
		Symbol:     "SPY",
		Kind:       portfolio.Equity,
		Quantity:   10,
		EntryPrice: decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateQuantity(ctx, id, 25, decimal.RequireFromString("505.50")))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 25.0, got[0].Quantity)
	assert.True(t, got[0].EntryPrice.Equal(decimal.RequireFromString("505.50")))

	require.NoError(t, s.Delete(ctx, id))
	got, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, s.Delete(ctx, id), sql.ErrNoRows)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, id, 1, decimal.Zero), sql.ErrNoRows)
}

func TestStoreDecimalPrecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// a price that float64 cannot hold exactly must survive verbatim
	price := decimal.RequireFromString("123.456789012345678901")
	_, err := s.Insert(ctx, portfolio.Position{
		Symbol:     "BRK.A",
		Kind:       portfolio.Equity,
		Quantity:   1,
		EntryPrice: price,
	})
	require.NoError(t, err)

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, price.String(), got[0].EntryPrice.String())
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), portfolio.Position{
		Symbol: "SPY", Kind: portfolio.Equity, Quantity: 5, EntryPrice: decimal.NewFromInt(490),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SPY", got[0].Symbol)
}
