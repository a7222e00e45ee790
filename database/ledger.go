package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"portfolio-ledger/models"
)

// CreateTransaction appends tx to the ledger and fills its ID.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// Transactions returns the user's whole ledger in replay order.
func (s *Store) Transactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp ASC").Order("id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// SymbolTransactions returns the ledger of one (user, symbol) pair in replay order.
func (s *Store) SymbolTransactions(ctx context.Context, userID uint, symbol string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Order("timestamp ASC").Order("id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s transactions: %w", symbol, err)
	}
	return txs, nil
}

const positionsQuery = `
	SELECT symbol, MAX(name) AS name,
		CAST(COALESCE(SUM(CASE WHEN type = 'BUY' THEN quantity ELSE 0 END), 0) AS BIGINT) AS bought,
		CAST(COALESCE(SUM(CASE WHEN type = 'SELL' THEN quantity ELSE 0 END), 0) AS BIGINT) AS sold,
		COALESCE(SUM(CASE WHEN type = 'BUY' THEN gross_amount ELSE 0 END), 0) AS buy_cost
	FROM transactions
	WHERE user_id = @user`

// Positions aggregates the user's ledger per symbol, ordered by symbol.
func (s *Store) Positions(ctx context.Context, userID uint) ([]models.Position, error) {
	var out []models.Position
	q := positionsQuery + ` GROUP BY symbol ORDER BY symbol`
	if err := s.db.WithContext(ctx).Raw(q, map[string]any{"user": userID}).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("aggregate positions: %w", err)
	}
	return out, nil
}

// Position aggregates the ledger of one (user, symbol) pair. A symbol with
// no transactions yields a zero Position.
func (s *Store) Position(ctx context.Context, userID uint, symbol string) (models.Position, error) {
	var out []models.Position
	q := positionsQuery + ` AND symbol = @symbol GROUP BY symbol`
	err := s.db.WithContext(ctx).Raw(q, map[string]any{"user": userID, "symbol": symbol}).Scan(&out).Error
	if err != nil {
		return models.Position{}, fmt.Errorf("aggregate %s position: %w", symbol, err)
	}
	if len(out) == 0 {
		return models.Position{Symbol: symbol}, nil
	}
	return out[0], nil
}

// Holding returns the derived holding of a pair or models.ErrNotFound.
func (s *Store) Holding(ctx context.Context, userID uint, symbol string) (models.Holding, error) {
	var h models.Holding
	err := s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
	if err != nil {
		return h, notFound(err)
	}
	return h, nil
}

// Holdings lists the user's holdings by symbol.
func (s *Store) Holdings(ctx context.Context, userID uint) ([]models.Holding, error) {
	var hs []models.Holding
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&hs).Error; err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return hs, nil
}

// UpsertHolding inserts h or overwrites the existing row of its pair.
func (s *Store) UpsertHolding(ctx context.Context, h *models.Holding) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "average_cost", "price", "market_value", "updated_at"}),
	}).Create(h).Error
	if err != nil {
		return fmt.Errorf("upsert holding: %w", err)
	}
	return nil
}

// DeleteHolding removes the holding of a pair, if any.
func (s *Store) DeleteHolding(ctx context.Context, userID uint, symbol string) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).Delete(&models.Holding{}).Error
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return nil
}

// ResetLedger deletes every transaction and holding of a user. It is meant
// for seeding test data, never for regular trading.
func (s *Store) ResetLedger(ctx context.Context, userID uint) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Transaction{}).Error; err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if err := tx.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Holding{}).Error; err != nil {
			return fmt.Errorf("delete holdings: %w", err)
		}
		return nil
	})
}

// LockPair serializes writers of one (user, symbol) pair until the enclosing
// transaction ends. s must be bound to that transaction. On PostgreSQL this
// takes a transaction-scoped advisory lock; SQLite already serializes
// writers on its single connection, so nothing is taken there.
func (s *Store) LockPair(ctx context.Context, userID uint, symbol string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", PairKey(userID, symbol)).Error
	if err != nil {
		return fmt.Errorf("lock %s: %w", PairKey(userID, symbol), err)
	}
	return nil
}

// PairKey names a (user, symbol) pair, e.g. "7|AAPL".
func PairKey(userID uint, symbol string) string { return fmt.Sprintf("%d|%s", userID, symbol) }
