package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"portfolio-ledger/models"
)

// RecordPrices stores observed quotes. A quote already recorded for the same
// symbol and timestamp is kept as is.
func (s *Store) RecordPrices(ctx context.Context, prices []models.StockPrice) error {
	if len(prices) == 0 {
		return nil
	}
	return s.CreateInBatches(ctx, prices, 100, clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoNothing: true,
	})
}

// LatestPrice returns the most recent recorded quote of symbol.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (models.StockPrice, error) {
	var p models.StockPrice
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("timestamp DESC").First(&p).Error
	if err != nil {
		return p, notFound(err)
	}
	return p, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return u, notFound(err)
	}
	return u, nil
}

func (s *Store) User(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return u, notFound(err)
	}
	return u, nil
}
