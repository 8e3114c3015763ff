package data

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/trading-assistant/internal/chain"
	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/pricing"
	"github.com/contactkeval/trading-assistant/internal/stats"
)

// Synthetic generation parameters.
const (
	synthHistoryDays = 260 // roughly one trading year of weekdays
	synthAnnualVol   = 0.22
	synthRate        = 0.04
	synthDrift       = 0.06
)

// syntheticProvider generates reproducible random-walk histories and
// model-consistent option chains. The same seed and symbol always produce
// the same data, so tests and replays are stable.
type syntheticProvider struct {
	seed      int64
	secondary Provider
}

// NewSyntheticProvider builds a synthetic provider. Seed 0 selects a fixed
// default seed rather than a random one.
func NewSyntheticProvider(seed int64) Provider {
	if seed == 0 {
		seed = 17
	}
	return &syntheticProvider{seed: seed}
}

func (sp *syntheticProvider) Secondary() Provider { return sp.secondary }

// rng derives a per-symbol generator so each underlying gets its own path
// but the same one on every call.
func (sp *syntheticProvider) rng(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return rand.New(rand.NewSource(sp.seed ^ int64(h.Sum64())))
}

func (sp *syntheticProvider) Spot(symbol string) (float64, error) {
	series, err := sp.History(symbol)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1].Close, nil
}

// History walks a geometric path: daily log returns drawn from the
// configured drift and vol, weekends skipped.
func (sp *syntheticProvider) History(symbol string) (stats.PriceSeries, error) {
	r := sp.rng(symbol)
	price := 50.0 + r.Float64()*400

	dailyVol := synthAnnualVol / math.Sqrt(252)
	dailyDrift := synthDrift / 252

	end := time.Now().UTC().Truncate(24 * time.Hour)
	day := end.AddDate(0, 0, -synthHistoryDays)

	series := make(stats.PriceSeries, 0, synthHistoryDays)
	for !day.After(end) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			price *= math.Exp(dailyDrift - 0.5*dailyVol*dailyVol + dailyVol*r.NormFloat64())
			series = append(series, stats.PricePoint{Date: day, Close: price})
		}
		day = day.AddDate(0, 0, 1)
	}

	logger.Tracef("event=synthetic_history symbol=%s points=%d last=%.2f",
		symbol, len(series), series[len(series)-1].Close)
	return series, nil
}

// Expiries returns the next four monthly expiries, 28 days apart.
func (sp *syntheticProvider) Expiries(symbol string) ([]time.Time, error) {
	base := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]time.Time, 0, 4)
	for i := 1; i <= 4; i++ {
		out = append(out, base.AddDate(0, 0, 28*i))
	}
	return out, nil
}

// Chain builds a model-consistent snapshot: strikes ladder around spot,
// quotes priced off the model with a mild put-favoring vol skew, and a
// spread of a few cents around the mid.
func (sp *syntheticProvider) Chain(symbol string, expiry time.Time) (chain.Snapshot, error) {
	spot, err := sp.Spot(symbol)
	if err != nil {
		return chain.Snapshot{}, err
	}

	r := sp.rng(symbol + expiry.Format("20060102"))
	now := time.Now().UTC()
	tt := expiry.Sub(now).Hours() / 24 / 365
	if tt <= 0 {
		return chain.Snapshot{}, ErrNoData
	}

	interval := strikeInterval(spot)
	atm := math.Round(spot/interval) * interval

	var quotes []chain.ContractQuote
	for i := -8; i <= 8; i++ {
		strike := atm + float64(i)*interval
		if strike <= 0 {
			continue
		}

		// downside strikes trade at a vol premium
		moneyness := math.Log(strike / spot)
		vol := synthAnnualVol - 0.25*moneyness + 0.5*moneyness*moneyness

		for _, kind := range []pricing.OptionKind{pricing.Call, pricing.Put} {
			g, err := pricing.PriceAndGreeks(pricing.Params{
				Spot:         spot,
				Strike:       strike,
				TimeToExpiry: tt,
				Rate:         synthRate,
				Vol:          vol,
				Kind:         kind,
			})
			if err != nil {
				return chain.Snapshot{}, err
			}

			half := 0.01 + 0.002*math.Abs(float64(i))
			quotes = append(quotes, chain.ContractQuote{
				Strike:       strike,
				Expiry:       expiry,
				Kind:         kind,
				Bid:          math.Max(0, g.Price-half),
				Ask:          g.Price + half,
				Last:         g.Price,
				ImpliedVol:   vol,
				OpenInterest: int64(100 + r.Intn(5000)),
				Volume:       int64(r.Intn(2000)),
			})
		}
	}

	logger.Debugf("event=synthetic_chain symbol=%s expiry=%s quotes=%d",
		symbol, expiry.Format("2006-01-02"), len(quotes))
	return chain.Snapshot{Underlying: symbol, Expiry: expiry, Quotes: quotes}, nil
}

// strikeInterval picks a listing interval appropriate to the price level.
func strikeInterval(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 250:
		return 5
	default:
		return 10
	}
}
