// Package report writes the risk run's results to disk as JSON and CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/contactkeval/trading-assistant/internal/portfolio"
	"github.com/contactkeval/trading-assistant/internal/stats"
)

// RiskReport bundles everything one run produces.
type RiskReport struct {
	GeneratedAt   time.Time                      `json:"generated_at"`
	Exposure      portfolio.Exposure             `json:"exposure"`
	Concentration portfolio.ConcentrationMetrics `json:"concentration"`
	VaR           *portfolio.VaR                 `json:"var,omitempty"`
	Summary       portfolio.Summary              `json:"summary"`
	Volatility    []stats.VolatilityAnalysis     `json:"volatility,omitempty"`
}

// WriteJSON writes the full report to <outdir>/risk_report.json.
func WriteJSON(rep *RiskReport, outdir string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, "risk_report.json"), b, 0644)
}

// WriteCSV writes the per-symbol exposure table to <outdir>/exposure.csv.
// Skipped positions get a row with empty greeks and the skip reason, so
// the CSV accounts for the whole book.
func WriteCSV(exp portfolio.Exposure, outdir string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outdir, "exposure.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"symbol", "delta", "gamma", "theta", "vega", "rho", "note"}
	if err := w.Write(headers); err != nil {
		return err
	}

	symbols := make([]string, 0, len(exp.PerSymbol))
	for sym := range exp.PerSymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		t := exp.PerSymbol[sym]
		row := []string{
			sym,
			fmt.Sprintf("%.4f", t.Delta),
			fmt.Sprintf("%.4f", t.Gamma),
			fmt.Sprintf("%.4f", t.Theta),
			fmt.Sprintf("%.4f", t.Vega),
			fmt.Sprintf("%.4f", t.Rho),
			"",
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	for _, s := range exp.Skipped {
		row := []string{s.Position.Symbol, "", "", "", "", "", "skipped: " + s.Reason}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	total := []string{
		"TOTAL",
		fmt.Sprintf("%.4f", exp.NetDelta),
		fmt.Sprintf("%.4f", exp.NetGamma),
		fmt.Sprintf("%.4f", exp.NetTheta),
		fmt.Sprintf("%.4f", exp.NetVega),
		fmt.Sprintf("%.4f", exp.NetRho),
		fmt.Sprintf("delta=%s gamma=%s vega=%s", exp.DeltaBias, exp.GammaBias, exp.VegaBias),
	}
	return w.Write(total)
}
