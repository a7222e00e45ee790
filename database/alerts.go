package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"portfolio-ledger/models"
)

func (s *Store) Preference(ctx context.Context, userID uint, symbol string) (models.UserPreference, error) {
	var p models.UserPreference
	err := s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).First(&p).Error
	if err != nil {
		return p, notFound(err)
	}
	return p, nil
}

func (s *Store) Preferences(ctx context.Context, userID uint) ([]models.UserPreference, error) {
	var ps []models.UserPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return ps, nil
}

// AllPreferences lists every user's preferences, the work list of an alert run.
func (s *Store) AllPreferences(ctx context.Context) ([]models.UserPreference, error) {
	var ps []models.UserPreference
	if err := s.db.WithContext(ctx).Order("user_id").Order("symbol").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("list all preferences: %w", err)
	}
	return ps, nil
}

// UpsertPreference inserts p or overwrites threshold and flag of its pair.
func (s *Store) UpsertPreference(ctx context.Context, p *models.UserPreference) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"volatility_threshold", "alert_triggered", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// SetAlertTriggered flips the triggered flag of a pair, provided its
// threshold is still threshold. It reports whether a row was updated.
func (s *Store) SetAlertTriggered(ctx context.Context, userID uint, symbol string, threshold float64, triggered bool) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.UserPreference{}).
		Where("user_id = ? AND symbol = ? AND volatility_threshold = ?", userID, symbol, threshold).
		Update("alert_triggered", triggered)
	if res.Error != nil {
		return false, fmt.Errorf("update alert flag: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpsertAlert inserts a or overwrites message and time of the pair's alert.
func (s *Store) UpsertAlert(ctx context.Context, a *models.Alert) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "created_at"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// DeleteAlerts removes the alerts of a pair and returns how many were removed.
func (s *Store) DeleteAlerts(ctx context.Context, userID uint, symbol string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND symbol = ?", userID, symbol).Delete(&models.Alert{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete alerts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Alerts lists the user's alerts, newest first.
func (s *Store) Alerts(ctx context.Context, userID uint) ([]models.Alert, error) {
	var as []models.Alert
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&as).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return as, nil
}
