package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/trading-assistant/internal/portfolio"
)

func sampleExposure() portfolio.Exposure {
	return portfolio.Exposure{
		NetDelta: 127.36,
		NetGamma: 3.7524,
		NetTheta: -1282.8,
		NetVega:  7504.8,
		NetRho:   10646.5,
		PerSymbol: map[string]portfolio.GreekTotals{
			"SPY":  {Delta: 127.36, Gamma: 3.7524, Theta: -1282.8, Vega: 7504.8, Rho: 10646.5},
			"AAPL": {Delta: 0},
		},
		DeltaBias: portfolio.Long,
		GammaBias: portfolio.Long,
		VegaBias:  portfolio.Long,
		Skipped: []portfolio.SkippedPosition{
			{Position: portfolio.Position{Symbol: "TSLA"}, Reason: "missing market data for symbol"},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	rep := &RiskReport{
		GeneratedAt: time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
		Exposure:    sampleExposure(),
	}

	require.NoError(t, WriteJSON(rep, dir))

	b, err := os.ReadFile(filepath.Join(dir, "risk_report.json"))
	require.NoError(t, err)

	var decoded RiskReport
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, rep.Exposure.NetDelta, decoded.Exposure.NetDelta)
	assert.Equal(t, portfolio.Long, decoded.Exposure.DeltaBias)
	require.Len(t, decoded.Exposure.Skipped, 1)
	assert.Equal(t, "TSLA", decoded.Exposure.Skipped[0].Position.Symbol)
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, WriteCSV(sampleExposure(), dir))

	f, err := os.Open(filepath.Join(dir, "exposure.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// header + 2 symbols + 1 skipped + total
	require.Len(t, rows, 5)
	assert.Equal(t, "symbol", rows[0][0])
	assert.Equal(t, "AAPL", rows[1][0]) // sorted
	assert.Equal(t, "SPY", rows[2][0])
	assert.Equal(t, "127.3600", rows[2][1])
	assert.Equal(t, "TSLA", rows[3][0])
	assert.Contains(t, rows[3][6], "skipped")
	assert.Equal(t, "TOTAL", rows[4][0])
	assert.Contains(t, rows[4][6], "delta=long")
}
