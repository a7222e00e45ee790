package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-ledger/database"
	"portfolio-ledger/database/dbtest"
	"portfolio-ledger/events"
	"portfolio-ledger/ledger"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed/pricefeedtest"
)

type recorder struct {
	mu     sync.Mutex
	events []events.LedgerEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) Close() error { return nil }

func setup(t *testing.T) (*ledger.Service, *database.Store, *pricefeedtest.Fake, *recorder) {
	t.Helper()
	store := dbtest.Open(t)
	prices := pricefeedtest.New()
	rec := &recorder{}
	return ledger.NewService(store, prices, rec, nil), store, prices, rec
}

func holding(t *testing.T, s *database.Store, userID uint, symbol string) models.Holding {
	t.Helper()
	h, err := s.Holding(context.Background(), userID, symbol)
	if err != nil {
		t.Fatalf("Holding(%d, %s) error = %v", userID, symbol, err)
	}
	return h
}

func TestPurchaseAndSale(t *testing.T) {
	svc, store, prices, rec := setup(t)
	ctx := context.Background()

	prices.SetPrice("AAPL", 150)
	if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "aapl", Name: "Apple", Quantity: 10}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	prices.SetPrice("AAPL", 160)
	r, err := svc.Sale(ctx, ledger.TradeRequest{UserID: 1, Symbol: "AAPL", Quantity: 4})
	if err != nil {
		t.Fatalf("Sale() error = %v", err)
	}
	if r.Transaction.Name != "Apple" {
		t.Errorf("sale Name = %q, want the held name %q", r.Transaction.Name, "Apple")
	}

	h := holding(t, store, 1, "AAPL")
	if h.Quantity != 6 {
		t.Errorf("Quantity = %d, want 6", h.Quantity)
	}
	if !h.AverageCost.Equal(decimal.NewFromInt(150)) {
		t.Errorf("AverageCost = %v, want 150", h.AverageCost)
	}
	if !h.Price.Equal(decimal.NewFromInt(160)) {
		t.Errorf("Price = %v, want 160", h.Price)
	}
	if !h.MarketValue.Equal(decimal.NewFromInt(960)) {
		t.Errorf("MarketValue = %v, want 960", h.MarketValue)
	}

	if len(rec.events) != 2 {
		t.Fatalf("published %d events, want 2", len(rec.events))
	}
	if e := rec.events[1]; e.Type != models.Sell || e.NetQuantity != 6 {
		t.Errorf("sale event = %+v, want SELL with net 6", e)
	}
}

func TestSaleClosesPosition(t *testing.T) {
	svc, store, prices, _ := setup(t)
	ctx := context.Background()
	prices.SetPrice("TSLA", 200)

	if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "TSLA", Quantity: 3}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	r, err := svc.Sale(ctx, ledger.TradeRequest{UserID: 1, Symbol: "TSLA", Quantity: 3})
	if err != nil {
		t.Fatalf("Sale() error = %v", err)
	}
	if r.Holding != nil {
		t.Errorf("Receipt.Holding = %+v, want nil", r.Holding)
	}
	if _, err := store.Holding(ctx, 1, "TSLA"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Holding() error = %v, want ErrNotFound", err)
	}
	txs, _ := store.Transactions(ctx, 1)
	if len(txs) != 2 {
		t.Errorf("ledger has %d entries, want 2", len(txs))
	}
}

func TestSaleRejected(t *testing.T) {
	svc, store, prices, rec := setup(t)
	ctx := context.Background()
	prices.SetPrice("NVDA", 100)

	if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "NVDA", Quantity: 2}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	tests := []struct {
		name string
		req  ledger.TradeRequest
		want error
	}{
		{"oversell", ledger.TradeRequest{UserID: 1, Symbol: "NVDA", Quantity: 3}, models.ErrInsufficientPosition},
		{"never held", ledger.TradeRequest{UserID: 2, Symbol: "NVDA", Quantity: 1}, models.ErrInsufficientPosition},
		{"zero quantity", ledger.TradeRequest{UserID: 1, Symbol: "NVDA", Quantity: 0}, models.ErrInvalidInput},
		{"bad symbol", ledger.TradeRequest{UserID: 1, Symbol: "NV DA", Quantity: 1}, models.ErrInvalidInput},
		{"long symbol", ledger.TradeRequest{UserID: 1, Symbol: "ABCDEFGHIJK", Quantity: 1}, models.ErrInvalidInput},
		{"no price", ledger.TradeRequest{UserID: 1, Symbol: "MSFT", Quantity: 1}, models.ErrPriceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Sale(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Sale() error = %v, want %v", err, tt.want)
			}
		})
	}

	txs, _ := store.Transactions(ctx, 1)
	if len(txs) != 1 {
		t.Errorf("ledger has %d entries after rejected sales, want 1", len(txs))
	}
	if len(rec.events) != 1 {
		t.Errorf("published %d events, want 1", len(rec.events))
	}
}

func TestPublishFailureKeepsTrade(t *testing.T) {
	svc, store, prices, rec := setup(t)
	rec.err = errors.New("broker down")
	prices.SetPrice("AMZN", 180)

	if _, err := svc.Purchase(context.Background(), ledger.TradeRequest{UserID: 1, Symbol: "AMZN", Quantity: 1}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if h := holding(t, store, 1, "AMZN"); h.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", h.Quantity)
	}
}

func TestRecalcKeepsHoldingWithoutPrice(t *testing.T) {
	svc, store, prices, _ := setup(t)
	ctx := context.Background()
	prices.SetPrice("GOOGL", 120)
	if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "GOOGL", Quantity: 5}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	before := holding(t, store, 1, "GOOGL")

	prices.Remove("GOOGL")
	err := svc.Projector().Recalc(ctx, 1, "GOOGL", "")
	if !errors.Is(err, models.ErrPriceUnavailable) {
		t.Fatalf("Recalc() error = %v, want ErrPriceUnavailable", err)
	}
	after := holding(t, store, 1, "GOOGL")
	if after.Quantity != before.Quantity || !after.Price.Equal(before.Price) {
		t.Errorf("holding changed to %+v, want %+v", after, before)
	}
}

func TestRecalcIdempotent(t *testing.T) {
	svc, store, prices, _ := setup(t)
	ctx := context.Background()
	prices.SetPrice("MSFT", 100)
	for _, q := range []int64{10, 30} {
		if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "MSFT", Quantity: q}); err != nil {
			t.Fatalf("Purchase() error = %v", err)
		}
		prices.SetPrice("MSFT", 200)
	}

	p := svc.Projector()
	for i := 0; i < 2; i++ {
		if err := p.Recalc(ctx, 1, "MSFT", ""); err != nil {
			t.Fatalf("Recalc() error = %v", err)
		}
		h := holding(t, store, 1, "MSFT")
		if h.Quantity != 40 || !h.AverageCost.Equal(decimal.NewFromInt(175)) || h.Name != "MSFT" {
			t.Errorf("Recalc() #%d holding = %d @ %v %q, want 40 @ 175 \"MSFT\"", i+1, h.Quantity, h.AverageCost, h.Name)
		}
	}
	hs, _ := svc.Holdings(ctx, 1)
	if len(hs) != 1 {
		t.Errorf("len(Holdings()) = %d, want 1", len(hs))
	}
}

func TestRecordBatch(t *testing.T) {
	svc, store, prices, _ := setup(t)
	ctx := context.Background()
	prices.SetPrice("AAPL", 150).SetPrice("TSLA", 250)
	start := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	px := decimal.NewFromInt(100)
	txs := []models.Transaction{
		models.NewTransaction(1, "AAPL", "Apple", models.Buy, px, 5, start),
		models.NewTransaction(1, "TSLA", "Tesla", models.Buy, px, 2, start.Add(time.Hour)),
		models.NewTransaction(1, "AAPL", "Apple", models.Sell, px, 1, start.Add(24*time.Hour)),
		models.NewTransaction(1, "NVDA", "Nvidia", models.Buy, px, 1, start.Add(48*time.Hour)),
	}

	err := svc.RecordBatch(ctx, txs)
	if !errors.Is(err, models.ErrPriceUnavailable) {
		t.Errorf("RecordBatch() error = %v, want ErrPriceUnavailable for NVDA", err)
	}
	stored, _ := store.Transactions(ctx, 1)
	if len(stored) != 4 {
		t.Errorf("stored %d transactions, want 4", len(stored))
	}
	if h := holding(t, store, 1, "AAPL"); h.Quantity != 4 {
		t.Errorf("AAPL Quantity = %d, want 4", h.Quantity)
	}
	if h := holding(t, store, 1, "TSLA"); h.Quantity != 2 {
		t.Errorf("TSLA Quantity = %d, want 2", h.Quantity)
	}

	unsorted := []models.Transaction{txs[2], txs[0]}
	if err := svc.RecordBatch(ctx, unsorted); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("RecordBatch(unsorted) error = %v, want ErrInvalidInput", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, store, prices, _ := setup(t)
	ctx := context.Background()
	prices.SetPrice("AAPL", 150)
	if _, err := svc.Purchase(ctx, ledger.TradeRequest{UserID: 1, Symbol: "AAPL", Quantity: 5}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	const sellers = 4
	errs := make(chan error, sellers)
	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sale(ctx, ledger.TradeRequest{UserID: 1, Symbol: "AAPL", Quantity: 5})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	sold := 0
	for err := range errs {
		switch {
		case err == nil:
			sold++
		case !errors.Is(err, models.ErrInsufficientPosition):
			t.Errorf("Sale() error = %v, want nil or ErrInsufficientPosition", err)
		}
	}
	if sold != 1 {
		t.Errorf("%d sales of the whole position succeeded, want 1", sold)
	}
	pos, err := store.Position(ctx, 1, "AAPL")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if net := pos.NetQuantity(); net != 0 {
		t.Errorf("NetQuantity() = %d, want 0", net)
	}
}
