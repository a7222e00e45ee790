// Package ledger records trades and keeps the holdings derived from them in
// step with the transaction log.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-ledger/database"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
	"portfolio-ledger/valuation"
)

// Projector rebuilds the Holding of a (user, symbol) pair from its
// transactions. The result depends only on the ledger and the current
// price, so running it twice changes nothing.
type Projector struct {
	store  *database.Store
	prices pricefeed.Gateway
	now    func() time.Time
}

func NewProjector(store *database.Store, prices pricefeed.Gateway) *Projector {
	return &Projector{store: store, prices: prices, now: time.Now}
}

// Recalc prices the pair and rewrites its holding. When no price is
// available the stored holding is left as it was.
func (p *Projector) Recalc(ctx context.Context, userID uint, symbol, name string) error {
	price, err := p.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return models.WithSymbol(userID, symbol, err)
	}
	return p.store.InTx(ctx, func(tx *database.Store) error {
		if err := tx.LockPair(ctx, userID, symbol); err != nil {
			return err
		}
		_, err := p.project(ctx, tx, userID, symbol, name, price)
		return err
	})
}

// project replays the pair's transactions through store, which is expected
// to be bound to the caller's transaction. It returns the upserted holding,
// or nil when the position is closed and the holding was removed.
func (p *Projector) project(ctx context.Context, store *database.Store, userID uint, symbol, name string, price decimal.Decimal) (*models.Holding, error) {
	txs, err := store.SymbolTransactions(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	book := valuation.Book{}
	for _, tx := range txs {
		book.Apply(tx)
		if name == "" && tx.Name != "" {
			name = tx.Name
		}
	}
	pos := book[symbol]
	if pos.Quantity <= 0 {
		return nil, store.DeleteHolding(ctx, userID, symbol)
	}

	if name == "" {
		name = symbol
	}
	h := &models.Holding{
		UserID:      userID,
		Symbol:      symbol,
		Name:        name,
		Quantity:    pos.Quantity,
		AverageCost: pos.AverageCost.Round(4),
		Price:       price.Round(2),
		MarketValue: price.Mul(decimal.NewFromInt(pos.Quantity)).Round(2),
		UpdatedAt:   p.now(),
	}
	if err := store.UpsertHolding(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}
