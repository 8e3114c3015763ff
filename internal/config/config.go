// Package config loads the assistant's TOML configuration. A missing file
// is not an error: Load falls back to defaults so the CLI runs out of the
// box.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		Verbosity int    `toml:"verbosity"`
		DBPath    string `toml:"db_path"`
		ReportDir string `toml:"report_dir"`
	} `toml:"app"`

	Market struct {
		Provider   string   `toml:"provider"` // "csv" | "synthetic"
		FixtureDir string   `toml:"fixture_dir"`
		RiskFree   float64  `toml:"risk_free_rate"`
		Symbols    []string `toml:"symbols"`
	} `toml:"market"`

	Volatility struct {
		Window              int     `toml:"window"`
		PeriodsPerYear      int     `toml:"periods_per_year"`
		DivergenceThreshold float64 `toml:"divergence_threshold"`
	} `toml:"volatility"`

	Risk struct {
		DeltaBand      float64 `toml:"delta_band"`
		GammaBand      float64 `toml:"gamma_band"`
		VegaBand       float64 `toml:"vega_band"`
		VaRConfidence  float64 `toml:"var_confidence"`
		VaRHorizonDays int     `toml:"var_horizon_days"`
	} `toml:"risk"`

	Selector struct {
		TargetDelta float64 `toml:"target_delta"`
		StrikeRule  string  `toml:"strike_rule"`
	} `toml:"selector"`
}

// Load reads path, fills defaults, and validates. An empty path or a
// nonexistent file yields the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.DBPath == "" {
		cfg.App.DBPath = "positions.db"
	}
	if cfg.App.ReportDir == "" {
		cfg.App.ReportDir = "reports"
	}

	if cfg.Market.Provider == "" {
		cfg.Market.Provider = "synthetic"
	}
	if cfg.Market.RiskFree == 0 {
		cfg.Market.RiskFree = 0.04
	}

	if cfg.Volatility.Window <= 0 {
		cfg.Volatility.Window = 30
	}
	if cfg.Volatility.PeriodsPerYear <= 0 {
		cfg.Volatility.PeriodsPerYear = 252
	}
	if cfg.Volatility.DivergenceThreshold <= 0 {
		cfg.Volatility.DivergenceThreshold = 0.30
	}

	if cfg.Risk.DeltaBand <= 0 {
		cfg.Risk.DeltaBand = 10
	}
	if cfg.Risk.GammaBand <= 0 {
		cfg.Risk.GammaBand = 1
	}
	if cfg.Risk.VegaBand <= 0 {
		cfg.Risk.VegaBand = 50
	}
	if cfg.Risk.VaRConfidence <= 0 {
		cfg.Risk.VaRConfidence = 0.95
	}
	if cfg.Risk.VaRHorizonDays <= 0 {
		cfg.Risk.VaRHorizonDays = 1
	}

	if cfg.Selector.TargetDelta == 0 {
		cfg.Selector.TargetDelta = 0.5
	}
	if cfg.Selector.StrikeRule == "" {
		cfg.Selector.StrikeRule = "ATM"
	}
}

func validate(cfg *Config) error {
	switch cfg.Market.Provider {
	case "csv", "synthetic":
	default:
		return fmt.Errorf("market.provider %q: want csv or synthetic", cfg.Market.Provider)
	}
	if cfg.Market.Provider == "csv" && strings.TrimSpace(cfg.Market.FixtureDir) == "" {
		return errors.New("market.fixture_dir required for the csv provider")
	}

	cfg.Market.Symbols = normalizeSymbols(cfg.Market.Symbols)

	if cfg.Risk.VaRConfidence <= 0.5 || cfg.Risk.VaRConfidence >= 1 {
		return fmt.Errorf("risk.var_confidence %v: want (0.5, 1)", cfg.Risk.VaRConfidence)
	}
	if cfg.Volatility.Window < 2 {
		return fmt.Errorf("volatility.window %d: want at least 2", cfg.Volatility.Window)
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
