package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/trading-assistant/internal/chain"
	"github.com/contactkeval/trading-assistant/internal/logger"
	"github.com/contactkeval/trading-assistant/internal/pricing"
	"github.com/contactkeval/trading-assistant/internal/stats"
)

const csvDateLayout = "2006-01-02"

// csvProvider reads market data from a fixture directory:
//
//	<dir>/<SYMBOL>.csv                      date,close
//	<dir>/<SYMBOL>_chain_<YYYY-MM-DD>.csv   strike,kind,bid,ask,last,iv,open_interest,volume
//
// A missing file falls through to the secondary provider when one is
// configured; a malformed file is always an error.
type csvProvider struct {
	dir       string
	secondary Provider
}

// NewCSVProvider builds a fixture-backed provider rooted at dir.
func NewCSVProvider(dir string, secondary Provider) Provider {
	return &csvProvider{dir: dir, secondary: secondary}
}

func (cp *csvProvider) Secondary() Provider { return cp.secondary }

func (cp *csvProvider) Spot(symbol string) (float64, error) {
	series, err := cp.History(symbol)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1].Close, nil
}

func (cp *csvProvider) History(symbol string) (stats.PriceSeries, error) {
	path := filepath.Join(cp.dir, strings.ToUpper(symbol)+".csv")
	rows, err := cp.readCSV(path)
	if err != nil {
		if os.IsNotExist(err) && cp.secondary != nil {
			logger.Debugf("event=csv_fallback symbol=%s file=%s", symbol, path)
			return cp.secondary.History(symbol)
		}
		return nil, err
	}

	series := make(stats.PriceSeries, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d: want date,close got %d fields", path, i+1, len(row))
		}
		date, err := time.Parse(csvDateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		close, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		series = append(series, stats.PricePoint{Date: date, Close: close})
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoData, path)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func (cp *csvProvider) Expiries(symbol string) ([]time.Time, error) {
	pattern := filepath.Join(cp.dir, strings.ToUpper(symbol)+"_chain_*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if cp.secondary != nil {
			return cp.secondary.Expiries(symbol)
		}
		return nil, fmt.Errorf("%w: no chain fixtures for %s", ErrNoData, symbol)
	}

	expiries := make([]time.Time, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".csv")
		idx := strings.LastIndex(base, "_chain_")
		if idx < 0 {
			continue
		}
		exp, err := time.Parse(csvDateLayout, base[idx+len("_chain_"):])
		if err != nil {
			return nil, fmt.Errorf("chain fixture %s: %w", m, err)
		}
		expiries = append(expiries, exp)
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })
	return expiries, nil
}

func (cp *csvProvider) Chain(symbol string, expiry time.Time) (chain.Snapshot, error) {
	path := filepath.Join(cp.dir,
		fmt.Sprintf("%s_chain_%s.csv", strings.ToUpper(symbol), expiry.Format(csvDateLayout)))
	rows, err := cp.readCSV(path)
	if err != nil {
		if os.IsNotExist(err) && cp.secondary != nil {
			logger.Debugf("event=csv_fallback symbol=%s file=%s", symbol, path)
			return cp.secondary.Chain(symbol, expiry)
		}
		return chain.Snapshot{}, err
	}

	quotes := make([]chain.ContractQuote, 0, len(rows))
	for i, row := range rows {
		q, err := parseQuoteRow(row, expiry)
		if err != nil {
			return chain.Snapshot{}, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		quotes = append(quotes, q)
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Strike < quotes[j].Strike })
	return chain.Snapshot{Underlying: strings.ToUpper(symbol), Expiry: expiry, Quotes: quotes}, nil
}

// readCSV loads all records, dropping a header row when the first field is
// not numeric-or-date shaped.
func (cp *csvProvider) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(records) > 0 && isHeaderRow(records[0]) {
		records = records[1:]
	}
	return records, nil
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.TrimSpace(row[0])
	if _, err := strconv.ParseFloat(first, 64); err == nil {
		return false
	}
	if _, err := time.Parse(csvDateLayout, first); err == nil {
		return false
	}
	return true
}

func parseQuoteRow(row []string, expiry time.Time) (chain.ContractQuote, error) {
	if len(row) < 6 {
		return chain.ContractQuote{}, fmt.Errorf("want strike,kind,bid,ask,last,iv got %d fields", len(row))
	}

	var q chain.ContractQuote
	var err error
	if q.Strike, err = strconv.ParseFloat(strings.TrimSpace(row[0]), 64); err != nil {
		return chain.ContractQuote{}, err
	}

	switch strings.ToLower(strings.TrimSpace(row[1])) {
	case "call", "c":
		q.Kind = pricing.Call
	case "put", "p":
		q.Kind = pricing.Put
	default:
		return chain.ContractQuote{}, fmt.Errorf("unknown option kind %q", row[1])
	}

	floats := []*float64{&q.Bid, &q.Ask, &q.Last, &q.ImpliedVol}
	for i, dst := range floats {
		field := strings.TrimSpace(row[2+i])
		if field == "" {
			continue
		}
		if *dst, err = strconv.ParseFloat(field, 64); err != nil {
			return chain.ContractQuote{}, err
		}
	}

	ints := []*int64{&q.OpenInterest, &q.Volume}
	for i, dst := range ints {
		if 6+i >= len(row) {
			break
		}
		field := strings.TrimSpace(row[6+i])
		if field == "" {
			continue
		}
		if *dst, err = strconv.ParseInt(field, 10, 64); err != nil {
			return chain.ContractQuote{}, err
		}
	}

	q.Expiry = expiry
	return q, nil
}
