package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/contactkeval/trading-assistant/internal/chain"
	"github.com/contactkeval/trading-assistant/internal/config"
	"github.com/contactkeval/trading-assistant/internal/data"
	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/portfolio"
	"github.com/contactkeval/trading-assistant/internal/pricing"
	"github.com/contactkeval/trading-assistant/internal/report"
	"github.com/contactkeval/trading-assistant/internal/stats"
	"github.com/contactkeval/trading-assistant/internal/store"
)

func main() {
	configPath := flag.String("config", "assistant.toml", "path to TOML config")
	providerName := flag.String("provider", "", "override market.provider (csv | synthetic)")
	dbPath := flag.String("db", "", "override app.db_path")
	verbosity := flag.Int("v", -1, "override app.verbosity (0=error..3=trace)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("event=config_load_failed path=%s err=%v", *configPath, err)
		os.Exit(1)
	}
	if *providerName != "" {
		cfg.Market.Provider = *providerName
	}
	if *dbPath != "" {
		cfg.App.DBPath = *dbPath
	}
	if *verbosity >= 0 {
		cfg.App.Verbosity = *verbosity
	}
	logger.SetVerbosity(cfg.App.Verbosity)

	if err := run(cfg); err != nil {
		logger.Errorf("event=run_failed err=%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	start := time.Now()
	ctx := context.Background()

	st, err := store.Open(cfg.App.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	positions, err := st.List(ctx)
	if err != nil {
		return err
	}
	logger.Infof("event=book_loaded positions=%d db=%s", len(positions), cfg.App.DBPath)

	prov, err := data.Select(cfg.Market.Provider, cfg.Market.FixtureDir)
	if err != nil {
		return err
	}

	symbols := collectSymbols(positions, cfg.Market.Symbols)
	mktCtx, analyses := buildMarketView(prov, symbols, cfg)

	bands := portfolio.Bands{
		Delta: cfg.Risk.DeltaBand,
		Gamma: cfg.Risk.GammaBand,
		Vega:  cfg.Risk.VegaBand,
	}
	exposure, err := portfolio.AggregateWithBands(positions, mktCtx, bands)
	if err != nil {
		return err
	}

	concentration, err := portfolio.Concentration(positions, mktCtx)
	if err != nil {
		return err
	}

	summary, err := portfolio.Summarize(positions, mktCtx)
	if err != nil {
		return err
	}

	rep := &report.RiskReport{
		GeneratedAt:   time.Now().UTC(),
		Exposure:      exposure,
		Concentration: concentration,
		Summary:       summary,
		Volatility:    analyses,
	}

	if v, err := portfolioVaR(summary, concentration, analyses, cfg); err == nil {
		rep.VaR = v
	} else {
		logger.Debugf("event=var_skipped err=%v", err)
	}

	if err := report.WriteJSON(rep, cfg.App.ReportDir); err != nil {
		return err
	}
	if err := report.WriteCSV(exposure, cfg.App.ReportDir); err != nil {
		return err
	}

	logger.Infof("event=run_done elapsed=%s symbols=%d skipped=%d report_dir=%s",
		time.Since(start).Round(time.Millisecond), len(symbols), len(exposure.Skipped), cfg.App.ReportDir)
	return nil
}

// collectSymbols merges the book's symbols with the configured watchlist.
func collectSymbols(positions []portfolio.Position, extra []string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(sym string) {
		if _, ok := seen[sym]; ok || sym == "" {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, p := range positions {
		add(p.Symbol)
	}
	for _, s := range extra {
		add(s)
	}
	return out
}

// buildMarketView gathers spot, realized vol, and implied vol for every
// symbol. A symbol the provider cannot serve is left out of the context;
// downstream aggregation reports it as skipped rather than failing the run.
func buildMarketView(prov data.Provider, symbols []string, cfg *config.Config) (portfolio.MarketContext, []stats.VolatilityAnalysis) {
	mktCtx := portfolio.MarketContext{
		AsOf:      time.Now().UTC(),
		Rate:      cfg.Market.RiskFree,
		PerSymbol: make(map[string]portfolio.MarketData),
	}
	var analyses []stats.VolatilityAnalysis

	for _, sym := range symbols {
		spot, err := prov.Spot(sym)
		if err != nil {
			logger.Errorf("event=spot_unavailable symbol=%s err=%v", sym, err)
			continue
		}

		series, err := prov.History(sym)
		if err != nil {
			logger.Errorf("event=history_unavailable symbol=%s err=%v", sym, err)
			continue
		}

		hv, err := stats.HistoricalVolatility(series, cfg.Volatility.Window, cfg.Volatility.PeriodsPerYear)
		if err != nil {
			logger.Errorf("event=hv_failed symbol=%s err=%v", sym, err)
			continue
		}

		vol := hv
		if iv, err := atmImpliedVol(prov, sym, spot, cfg.Market.RiskFree); err == nil {
			vol = iv

			if a, err := stats.AnalyzeVolatility(sym, series, iv, 0.20); err == nil {
				analyses = append(analyses, a)
				if div, err := stats.ClassifyDivergence(iv, a.HV30, cfg.Volatility.DivergenceThreshold); err == nil {
					logger.Infof("event=vol_analysis symbol=%s iv=%.4f hv30=%.4f status=%s divergence=%s",
						sym, iv, a.HV30, a.Status, div)
				}
			}
		} else {
			logger.Debugf("event=iv_unavailable symbol=%s err=%v", sym, err)
		}

		mktCtx.PerSymbol[sym] = portfolio.MarketData{Spot: spot, Vol: vol}
	}

	return mktCtx, analyses
}

// atmImpliedVol backs the at-the-money implied vol out of the nearest
// expiry's chain: pick the ATM call, solve the model for the mid price.
func atmImpliedVol(prov data.Provider, symbol string, spot, rate float64) (float64, error) {
	expiries, err := prov.Expiries(symbol)
	if err != nil {
		return 0, err
	}
	if len(expiries) == 0 {
		return 0, errors.New("no expiries")
	}

	snap, err := prov.Chain(symbol, expiries[0])
	if err != nil {
		return 0, err
	}

	inputs := chain.MarketInputs{Spot: spot, Rate: rate, AsOf: time.Now().UTC()}
	strike, err := chain.ResolveStrikeRule("ATM", snap, pricing.Call, inputs)
	if err != nil {
		return 0, err
	}

	for _, q := range snap.Quotes {
		if q.Kind != pricing.Call || q.Strike != strike {
			continue
		}
		mid := q.Mid()
		if mid <= 0 {
			break
		}
		return pricing.ImpliedVol(mid, pricing.Params{
			Spot:         spot,
			Strike:       q.Strike,
			TimeToExpiry: expiries[0].Sub(inputs.AsOf).Hours() / 24 / 365,
			Rate:         rate,
			Kind:         pricing.Call,
		})
	}
	return 0, errors.New("no usable ATM quote")
}

// portfolioVaR derives a portfolio-level VaR from the summary value and a
// weight-averaged volatility of the analyzed symbols.
func portfolioVaR(summary portfolio.Summary, conc portfolio.ConcentrationMetrics, analyses []stats.VolatilityAnalysis, cfg *config.Config) (*portfolio.VaR, error) {
	value, _ := summary.TotalValue.Float64()
	if value <= 0 {
		return nil, errors.New("no portfolio value")
	}

	vols := make(map[string]float64, len(analyses))
	for _, a := range analyses {
		vols[a.Symbol] = a.HV30
	}

	weighted, coverage := 0.0, 0.0
	for _, h := range conc.Holdings {
		if v, ok := vols[h.Symbol]; ok {
			weighted += v * h.WeightPercent / 100
			coverage += h.WeightPercent / 100
		}
	}
	if coverage <= 0 {
		return nil, errors.New("no volatility coverage")
	}

	v, err := portfolio.ParametricVaR(value, weighted/coverage, cfg.Risk.VaRConfidence, cfg.Risk.VaRHorizonDays)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
