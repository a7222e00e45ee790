package pricefeed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dailyBars(end time.Time, n int) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Time: end.AddDate(0, 0, i-n+1), Close: decimal.NewFromInt(int64(i))}
	}
	return bars
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		period   Period
		ok       bool
	}{
		{"1day", FiveMinutes, OneDay, true},
		{"1MONTH", Daily, OneMonth, true},
		{" max ", Monthly, Max, true},
		{"2month", "", "", false},
	}
	for _, tt := range tests {
		interval, period, ok := ParseRange(tt.name)
		if interval != tt.interval || period != tt.period || ok != tt.ok {
			t.Errorf("ParseRange(%q) = %q, %q, %v, want %q, %q, %v", tt.name, interval, period, ok, tt.interval, tt.period, tt.ok)
		}
	}
}

func TestTrim(t *testing.T) {
	end := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	bars := dailyBars(end, 400)
	tests := []struct {
		period Period
		first  time.Time
	}{
		// February 31 normalizes to March 3
		{OneMonth, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)},
		{ThreeMonths, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{YearToDate, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{OneYear, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)},
		{OneDay, end},
		{FiveDays, end.AddDate(0, 0, -4)},
		{Max, bars[0].Time},
	}
	for _, tt := range tests {
		got := trim(bars, tt.period)
		if len(got) == 0 {
			t.Errorf("trim(%s) is empty", tt.period)
			continue
		}
		if !got[0].Time.Equal(tt.first) {
			t.Errorf("trim(%s) starts %v, want %v", tt.period, got[0].Time, tt.first)
		}
		if !got[len(got)-1].Time.Equal(end) {
			t.Errorf("trim(%s) ends %v, want %v", tt.period, got[len(got)-1].Time, end)
		}
	}
	if got := trim(nil, OneMonth); len(got) != 0 {
		t.Errorf("trim(nil) = %v, want empty", got)
	}
}

func TestLastDaysIntraday(t *testing.T) {
	var bars []Bar
	start := time.Date(2025, time.March, 24, 9, 0, 0, 0, time.UTC)
	for d := 0; d < 7; d++ {
		for h := 0; h < 3; h++ {
			bars = append(bars, Bar{Time: start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)})
		}
	}
	got := lastDays(bars, 5)
	if len(got) != 15 {
		t.Fatalf("len(lastDays()) = %d, want 15", len(got))
	}
	if want := start.AddDate(0, 0, 2); !got[0].Time.Equal(want) {
		t.Errorf("lastDays()[0] = %v, want %v", got[0].Time, want)
	}
}
