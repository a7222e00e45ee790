// Package pricefeedtest provides an in-memory price gateway for tests.
package pricefeedtest

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
)

// Fake serves prices and histories set by the test. Unknown symbols are
// unavailable, like they are upstream.
type Fake struct {
	mu        sync.Mutex
	prices    map[string]decimal.Decimal
	histories map[string][]pricefeed.Bar
	delay     map[string]time.Duration
	calls     int
}

func New() *Fake {
	return &Fake{
		prices:    map[string]decimal.Decimal{},
		histories: map[string][]pricefeed.Bar{},
		delay:     map[string]time.Duration{},
	}
}

// SetPrice sets the current price of symbol.
func (f *Fake) SetPrice(symbol string, price float64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = decimal.NewFromFloat(price)
	return f
}

// Remove makes symbol unavailable.
func (f *Fake) Remove(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, symbol)
	delete(f.histories, symbol)
}

// SetCloses sets a daily history of symbol ending on end.
func (f *Fake) SetCloses(symbol string, end time.Time, closes ...float64) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars := make([]pricefeed.Bar, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		bars[i] = pricefeed.Bar{Time: end.AddDate(0, 0, i-len(closes)+1), Open: p, High: p, Low: p, Close: p}
	}
	f.histories[symbol] = bars
	return f
}

// Stall makes every call for symbol wait d or until the context ends.
func (f *Fake) Stall(symbol string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay[symbol] = d
}

// Calls returns how many requests reached the fake.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) wait(ctx context.Context, symbol string) error {
	f.mu.Lock()
	f.calls++
	d := f.delay[symbol]
	f.mu.Unlock()
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return models.Errorf(0, symbol, models.ErrPriceUnavailable, "%v", ctx.Err())
	}
}

func (f *Fake) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := f.wait(ctx, symbol); err != nil {
		return decimal.Zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, models.Errorf(0, symbol, models.ErrPriceUnavailable, "unknown symbol")
	}
	return p, nil
}

func (f *Fake) History(ctx context.Context, symbol string, period pricefeed.Period, interval pricefeed.Interval) ([]pricefeed.Bar, error) {
	if err := f.wait(ctx, symbol); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	bars, ok := f.histories[symbol]
	if !ok {
		return nil, models.Errorf(0, symbol, models.ErrPriceUnavailable, "unknown symbol")
	}
	return append([]pricefeed.Bar(nil), bars...), nil
}

var _ pricefeed.Gateway = (*Fake)(nil)
