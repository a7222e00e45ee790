package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"portfolio-ledger/models"
)

// TradingDays annualizes daily statistics.
const TradingDays = 252

// Returns computes the simple returns between consecutive closes.
func Returns(closes []decimal.Decimal) ([]float64, error) {
	if len(closes) < 2 {
		return nil, models.ErrInsufficientHistory
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if !prev.IsPositive() {
			return nil, models.ErrInvalidInput
		}
		out = append(out, closes[i].Sub(prev).Div(prev).InexactFloat64())
	}
	return out, nil
}

// Volatility is the population standard deviation of the simple returns of
// closes, annualized by the square root of TradingDays. At least two closes
// are needed.
func Volatility(closes []decimal.Decimal) (float64, error) {
	returns, err := Returns(closes)
	if err != nil {
		return 0, err
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	return math.Sqrt(sq/float64(len(returns))) * math.Sqrt(TradingDays), nil
}
