package analytics

import (
	"context"

	"github.com/shopspring/decimal"

	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
)

type Recommendation string

const (
	Buy  Recommendation = "Buy"
	Sell Recommendation = "Sell"
	Hold Recommendation = "Hold"
)

// MinRiskCloses is the history needed for the slow moving average.
const MinRiskCloses = 50

type Risk struct {
	Symbol         string          `json:"symbol"`
	LatestClose    decimal.Decimal `json:"latest_close"`
	MA20           decimal.Decimal `json:"MA20"`
	MA50           decimal.Decimal `json:"MA50"`
	Recommendation Recommendation  `json:"recommendation"`
}

// Assess compares the latest close with its 20 and 50 day moving averages.
// A close above a rising trend is a buy, below a falling one a sell.
func Assess(symbol string, closes []decimal.Decimal) (Risk, error) {
	if len(closes) < MinRiskCloses {
		return Risk{}, models.Errorf(0, symbol, models.ErrInsufficientHistory, "%d closes, need %d", len(closes), MinRiskCloses)
	}
	r := Risk{
		Symbol:         symbol,
		LatestClose:    closes[len(closes)-1],
		MA20:           mean(closes[len(closes)-20:]).Round(4),
		MA50:           mean(closes[len(closes)-50:]).Round(4),
		Recommendation: Hold,
	}
	switch {
	case r.LatestClose.GreaterThan(r.MA20) && r.MA20.GreaterThan(r.MA50):
		r.Recommendation = Buy
	case r.LatestClose.LessThan(r.MA20) && r.MA20.LessThan(r.MA50):
		r.Recommendation = Sell
	}
	return r, nil
}

func mean(xs []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, xs...).Div(decimal.NewFromInt(int64(len(xs))))
}

// Risk assesses symbol on three months of daily closes.
func (c *Calculator) Risk(ctx context.Context, symbol string) (Risk, error) {
	bars, err := c.prices.History(ctx, symbol, pricefeed.ThreeMonths, pricefeed.Daily)
	if err != nil {
		return Risk{}, models.WithSymbol(0, symbol, err)
	}
	return Assess(symbol, pricefeed.Closes(bars))
}

// CurrentVolatility annualizes the hourly returns of the last trading day and
// reports them in percent.
func (c *Calculator) CurrentVolatility(ctx context.Context, symbol string) (float64, error) {
	bars, err := c.prices.History(ctx, symbol, pricefeed.OneDay, pricefeed.Hourly)
	if err != nil {
		return 0, models.WithSymbol(0, symbol, err)
	}
	v, err := Volatility(pricefeed.Closes(bars))
	if err != nil {
		return 0, models.WithSymbol(0, symbol, err)
	}
	return v * 100, nil
}
