package portfolio

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/trading-assistant/internal/logger"
)

//
// ==========================
// Mark-to-model summary
// ==========================
//

// PositionLine is one position marked to model, with decimal accounting
// figures. A position without market data is marked at cost, flagged by
// MarkedAtCost, so the totals still cover the whole book.
type PositionLine struct {
	Position      Position        `json:"position"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percent"`
	MarkedAtCost  bool            `json:"marked_at_cost,omitempty"`
}

// Summary totals the book's market value, cost basis, and unrealized P&L.
type Summary struct {
	Lines      []PositionLine  `json:"lines"`
	TotalValue decimal.Decimal `json:"total_value"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
	PnLPercent decimal.Decimal `json:"pnl_percent"`
}

// Summarize marks every position to model and totals the results in
// decimal arithmetic. Valuation errors other than missing market data
// surface to the caller.
func Summarize(positions []Position, ctx MarketContext) (Summary, error) {
	s := Summary{Lines: make([]PositionLine, 0, len(positions))}

	for _, p := range positions {
		scale := decimal.NewFromFloat(p.Quantity * p.multiplier())
		cost := p.EntryPrice.Mul(scale)

		line := PositionLine{Position: p, CostBasis: cost}

		g, err := modelGreeks(p, ctx)
		switch {
		case errors.Is(err, ErrMissingMarketData):
			line.MarketValue = cost
			line.MarkedAtCost = true
		case err != nil:
			return Summary{}, err
		default:
			line.CurrentPrice = decimal.NewFromFloat(g.Price)
			line.MarketValue = line.CurrentPrice.Mul(scale)
			line.UnrealizedPnL = line.MarketValue.Sub(cost)
			if !cost.IsZero() {
				line.PnLPercent = line.UnrealizedPnL.Div(cost.Abs()).Mul(decimal.NewFromInt(100))
			}
		}

		s.TotalValue = s.TotalValue.Add(line.MarketValue)
		s.TotalCost = s.TotalCost.Add(line.CostBasis)
		s.TotalPnL = s.TotalPnL.Add(line.UnrealizedPnL)
		s.Lines = append(s.Lines, line)
	}

	if !s.TotalCost.IsZero() {
		s.PnLPercent = s.TotalPnL.Div(s.TotalCost.Abs()).Mul(decimal.NewFromInt(100))
	}

	logger.Debugf("event=portfolio_summary positions=%d value=%s pnl=%s",
		len(s.Lines), s.TotalValue.StringFixed(2), s.TotalPnL.StringFixed(2))
	return s, nil
}
