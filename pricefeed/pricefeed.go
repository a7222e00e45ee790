// Package pricefeed supplies current quotes and OHLC history for symbols.
//
// Every failure of the upstream provider, including unknown symbols and
// rate limiting, surfaces as an error wrapping models.ErrPriceUnavailable so
// callers only have one condition to handle.
package pricefeed

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLC observation.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Gateway is the market data the core depends on.
type Gateway interface {
	// CurrentPrice returns the latest traded price of symbol.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// History returns bars of the given interval covering period, oldest first.
	// An empty slice with a nil error means the provider has no data.
	History(ctx context.Context, symbol string, period Period, interval Interval) ([]Bar, error)
}

// Match is a ticker search result.
type Match struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

// Company describes the issuer of a symbol.
type Company struct {
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Website     string `json:"website"`
	Description string `json:"description"`
}

// Directory looks up symbols and issuers.
type Directory interface {
	Search(ctx context.Context, keywords string) ([]Match, error)
	Company(ctx context.Context, symbol string) (Company, error)
}

// Interval is the spacing of bars in a history.
type Interval string

const (
	FiveMinutes Interval = "5m"
	Hourly      Interval = "60m"
	Daily       Interval = "1d"
	Weekly      Interval = "1wk"
	Monthly     Interval = "1mo"
)

// Period is how far back a history goes.
type Period string

const (
	OneDay      Period = "1d"
	FiveDays    Period = "5d"
	OneMonth    Period = "1mo"
	ThreeMonths Period = "3mo"
	YearToDate  Period = "ytd"
	OneYear     Period = "1y"
	Max         Period = "max"
)

// ranges maps the chart ranges offered to users to a bar interval and a period.
var ranges = map[string]struct {
	interval Interval
	period   Period
}{
	"1day":   {FiveMinutes, OneDay},
	"1week":  {Daily, FiveDays},
	"1month": {Daily, OneMonth},
	"3month": {Daily, ThreeMonths},
	"ytd":    {Daily, YearToDate},
	"1year":  {Daily, OneYear},
	"max":    {Monthly, Max},
}

// ParseRange resolves a chart range name such as "1month".
func ParseRange(name string) (Interval, Period, bool) {
	r, ok := ranges[strings.ToLower(strings.TrimSpace(name))]
	return r.interval, r.period, ok
}

// Closes extracts the closing prices of bars.
func Closes(bars []Bar) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// trim keeps the bars of bars (sorted oldest first) that fall within period,
// counted back from the last bar.
func trim(bars []Bar, period Period) []Bar {
	if len(bars) == 0 {
		return bars
	}
	last := bars[len(bars)-1].Time
	var cutoff time.Time
	switch period {
	case OneDay:
		y, m, d := last.Date()
		cutoff = time.Date(y, m, d, 0, 0, 0, 0, last.Location())
	case FiveDays:
		return lastDays(bars, 5)
	case OneMonth:
		cutoff = last.AddDate(0, -1, 0)
	case ThreeMonths:
		cutoff = last.AddDate(0, -3, 0)
	case YearToDate:
		cutoff = time.Date(last.Year(), time.January, 1, 0, 0, 0, 0, last.Location())
	case OneYear:
		cutoff = last.AddDate(-1, 0, 0)
	default:
		return bars
	}
	for i, b := range bars {
		if !b.Time.Before(cutoff) {
			return bars[i:]
		}
	}
	return nil
}

// lastDays keeps the bars of the n most recent distinct calendar days.
func lastDays(bars []Bar, n int) []Bar {
	days := 0
	var prev string
	for i := len(bars) - 1; i >= 0; i-- {
		d := bars[i].Time.Format(time.DateOnly)
		if d != prev {
			days++
			prev = d
		}
		if days > n {
			return bars[i+1:]
		}
	}
	return bars
}
