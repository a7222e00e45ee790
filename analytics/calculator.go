// Package analytics derives figures from the ledger and market data:
// profit and loss, allocation, volatility and a moving-average signal.
// Nothing here writes to storage.
package analytics

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
)

var hundred = decimal.NewFromInt(100)

// Positions aggregates a user's ledger per symbol.
type Positions interface {
	Position(ctx context.Context, userID uint, symbol string) (models.Position, error)
	Positions(ctx context.Context, userID uint) ([]models.Position, error)
}

type Calculator struct {
	positions Positions
	prices    pricefeed.Gateway
	logger    *zap.Logger
}

func NewCalculator(positions Positions, prices pricefeed.Gateway, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{positions: positions, prices: prices, logger: logger}
}

type ProfitLoss struct {
	Symbol          string          `json:"symbol"`
	NetQuantity     int64           `json:"net_quantity"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	ProfitLossPct   decimal.Decimal `json:"profit_loss_percentage"`
	MarketValue     decimal.Decimal `json:"market_value"`
	TotalReturn     decimal.Decimal `json:"total_return"`
}

// ProfitLoss compares the current price of symbol with the average price
// paid over every buy of the user, regardless of later sales.
func (c *Calculator) ProfitLoss(ctx context.Context, userID uint, symbol string) (ProfitLoss, error) {
	pos, err := c.positions.Position(ctx, userID, symbol)
	if err != nil {
		return ProfitLoss{}, err
	}
	net := pos.NetQuantity()
	if pos.Bought == 0 || net <= 0 {
		return ProfitLoss{}, models.Errorf(userID, symbol, models.ErrInsufficientPosition, "no shares held")
	}

	price, err := c.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return ProfitLoss{}, models.WithSymbol(userID, symbol, err)
	}

	avg := pos.BuyCost.Div(decimal.NewFromInt(pos.Bought))
	qty := decimal.NewFromInt(net)
	pl := ProfitLoss{
		Symbol:          symbol,
		NetQuantity:     net,
		CurrentPrice:    price,
		AverageBuyPrice: avg.Round(4),
		ProfitLossPct:   decimal.Zero,
		MarketValue:     price.Mul(qty).Round(2),
		TotalReturn:     price.Sub(avg).Mul(qty).Round(2),
	}
	if avg.IsPositive() {
		pl.ProfitLossPct = price.Sub(avg).Div(avg).Mul(hundred).Round(4)
	}
	return pl, nil
}

type Allocation struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	NetQuantity  int64           `json:"net_quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
	DiversityPct decimal.Decimal `json:"diversity_percentage"`
}

type Diversity struct {
	TotalValue decimal.Decimal `json:"total_portfolio_value"`
	PerSymbol  []Allocation    `json:"portfolio"`
}

// Diversity splits the market value of the user's open positions by symbol.
// Symbols without a current price are left out of both the list and the
// total.
func (c *Calculator) Diversity(ctx context.Context, userID uint) (Diversity, error) {
	positions, err := c.positions.Positions(ctx, userID)
	if err != nil {
		return Diversity{}, err
	}

	var d Diversity
	for _, pos := range positions {
		net := pos.NetQuantity()
		if net <= 0 {
			continue
		}
		price, err := c.prices.CurrentPrice(ctx, pos.Symbol)
		if errors.Is(err, models.ErrPriceUnavailable) {
			c.logger.Warn("diversity: skipping unpriced symbol",
				zap.Uint("user_id", userID),
				zap.String("symbol", pos.Symbol),
				zap.Error(err))
			continue
		}
		if err != nil {
			return Diversity{}, err
		}
		value := price.Mul(decimal.NewFromInt(net))
		d.TotalValue = d.TotalValue.Add(value)
		d.PerSymbol = append(d.PerSymbol, Allocation{
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			NetQuantity:  net,
			CurrentPrice: price,
			CurrentValue: value,
		})
	}
	if !d.TotalValue.IsPositive() {
		return Diversity{}, &models.SymbolError{UserID: userID, Err: models.ErrEmptyPortfolio}
	}

	for i := range d.PerSymbol {
		a := &d.PerSymbol[i]
		a.DiversityPct = a.CurrentValue.Div(d.TotalValue).Mul(hundred).Round(2)
	}
	return d, nil
}
