// Package valuation rebuilds the day-by-day value of a portfolio from its
// ledger.
//
// The ledger only has entries on days with activity. Reconstruct walks every
// calendar day from the first transaction to today, carrying each symbol's
// quantity and running weighted-average cost forward across quiet days, so
// the resulting series has no gaps. Values are cost based: the price of each
// transaction is the only price used, the market is never consulted.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-ledger/date"
	"portfolio-ledger/models"
)

// Position is the state of one symbol at the end of a day.
type Position struct {
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// Value is quantity times average cost, zero unless the position is open.
func (p Position) Value() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

// Book holds the running position of every symbol seen so far.
type Book map[string]Position

// Apply updates the book with one transaction.
//
// A buy adds its cost to the position's basis. A sale releases basis at the
// current average, so the average cost is left as is. Closing a position
// resets its average cost to zero.
func (b Book) Apply(tx models.Transaction) {
	p := b[tx.Symbol]
	qty := p.Quantity + tx.Delta()
	switch {
	case qty <= 0:
		p.AverageCost = decimal.Zero
	case tx.Type == models.Buy:
		basis := p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
		if p.Quantity < 0 {
			basis = decimal.Zero
		}
		cost := tx.Price.Mul(decimal.NewFromInt(tx.Quantity))
		p.AverageCost = basis.Add(cost).Div(decimal.NewFromInt(qty))
	}
	p.Quantity = qty
	b[tx.Symbol] = p
}

// Value sums the value of the open positions.
func (b Book) Value() decimal.Decimal {
	total := decimal.Zero
	for _, p := range b {
		total = total.Add(p.Value())
	}
	return total
}

func (b Book) clone() Book {
	c := make(Book, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// DaySnapshot is the portfolio at the end of one calendar day.
type DaySnapshot struct {
	Date           date.Date       `json:"date"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ProfitLoss     decimal.Decimal `json:"daily_profit_loss"`
	Positions      Book            `json:"positions"`
}

// Validate checks that txs can be replayed: well-formed entries in
// non-decreasing timestamp order.
func Validate(txs []models.Transaction) error {
	for i, tx := range txs {
		switch {
		case !tx.Type.Valid():
			return models.Errorf(tx.UserID, tx.Symbol, models.ErrInvalidInput, "transaction %d: unknown type %q", tx.ID, tx.Type)
		case tx.Quantity <= 0:
			return models.Errorf(tx.UserID, tx.Symbol, models.ErrInvalidInput, "transaction %d: quantity %d", tx.ID, tx.Quantity)
		case tx.Price.IsNegative():
			return models.Errorf(tx.UserID, tx.Symbol, models.ErrInvalidInput, "transaction %d: price %s", tx.ID, tx.Price)
		case i > 0 && tx.Timestamp.Before(txs[i-1].Timestamp):
			return models.Errorf(tx.UserID, tx.Symbol, models.ErrInvalidInput, "transaction %d is out of order", tx.ID)
		}
	}
	return nil
}

// Reconstruct replays txs and returns one snapshot per day from the day of
// the first transaction to today, both included. Transaction days are taken
// in loc (UTC when nil). An empty ledger gives an empty series.
func Reconstruct(txs []models.Transaction, today date.Date, loc *time.Location) ([]DaySnapshot, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	if err := Validate(txs); err != nil {
		return nil, err
	}
	first := date.In(txs[0].Timestamp, loc)
	if last := txs[len(txs)-1]; date.In(last.Timestamp, loc).After(today) {
		return nil, models.Errorf(last.UserID, last.Symbol, models.ErrInvalidInput, "transaction %d is dated after %s", last.ID, today)
	}

	out := make([]DaySnapshot, 0, today.Sub(first)+1)
	book := Book{}
	previous := decimal.Zero
	next := 0
	for day := range date.Days(first, today) {
		for next < len(txs) && date.In(txs[next].Timestamp, loc) == day {
			book.Apply(txs[next])
			next++
		}
		value := book.Value()
		out = append(out, DaySnapshot{
			Date:           day,
			PortfolioValue: value,
			ProfitLoss:     value.Sub(previous),
			Positions:      book.clone(),
		})
		previous = value
	}
	return out, nil
}

// Ledger reads a user's transactions in replay order.
type Ledger interface {
	Transactions(ctx context.Context, userID uint) ([]models.Transaction, error)
}

// Service serves daily summaries from the stored ledger.
type Service struct {
	ledger Ledger
	loc    *time.Location
	now    func() time.Time
}

// NewService returns a Service counting days in loc.
func NewService(ledger Ledger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{ledger: ledger, loc: loc, now: time.Now}
}

// DailySummary reconstructs the user's portfolio up to today.
func (s *Service) DailySummary(ctx context.Context, userID uint) ([]DaySnapshot, error) {
	txs, err := s.ledger.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	return Reconstruct(txs, date.In(s.now(), s.loc), s.loc)
}
