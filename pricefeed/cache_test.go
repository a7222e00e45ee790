package pricefeed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
	"portfolio-ledger/pricefeed/pricefeedtest"
)

func TestCacheServesRepeatedQuotesLocally(t *testing.T) {
	fake := pricefeedtest.New().SetPrice("AAPL", 170)
	c, err := pricefeed.NewCache(fake, nil, time.Minute, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	ctx := context.Background()

	if _, err := c.CurrentPrice(ctx, "AAPL"); err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	c.Wait()
	fake.SetPrice("AAPL", 999)
	price, err := c.CurrentPrice(ctx, "AAPL")
	if err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	if price.InexactFloat64() != 170 {
		t.Errorf("CurrentPrice() = %v, want the cached 170", price)
	}
	if fake.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", fake.Calls())
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	fake := pricefeedtest.New()
	c, err := pricefeed.NewCache(fake, nil, time.Minute, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	ctx := context.Background()

	if _, err := c.CurrentPrice(ctx, "TSLA"); !errors.Is(err, models.ErrPriceUnavailable) {
		t.Fatalf("CurrentPrice() error = %v, want ErrPriceUnavailable", err)
	}
	c.Wait()
	fake.SetPrice("TSLA", 250)
	if _, err := c.CurrentPrice(ctx, "TSLA"); err != nil {
		t.Errorf("CurrentPrice() after recovery error = %v", err)
	}
}

func TestCacheHistory(t *testing.T) {
	end := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	fake := pricefeedtest.New().SetCloses("TSLA", end, 1, 2, 3)
	c, err := pricefeed.NewCache(fake, nil, time.Minute, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		bars, err := c.History(ctx, "TSLA", pricefeed.OneMonth, pricefeed.Daily)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(bars) != 3 {
			t.Fatalf("len(History()) = %d, want 3", len(bars))
		}
		c.Wait()
	}
	if fake.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", fake.Calls())
	}
}
