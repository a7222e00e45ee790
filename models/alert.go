package models

import "time"

// DefaultVolatilityThreshold is the annualized volatility above which an
// alert is raised when the user did not choose one.
const DefaultVolatilityThreshold = 0.05

type UserPreference struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	UserID              uint      `gorm:"uniqueIndex:idx_preferences_user_symbol;not null" json:"-"`
	Symbol              string    `gorm:"uniqueIndex:idx_preferences_user_symbol;size:10;not null" json:"symbol"`
	VolatilityThreshold float64   `gorm:"not null;default:0.05" json:"volatility_threshold"`
	AlertTriggered      bool      `gorm:"not null;default:false" json:"alert_triggered"`
	UpdatedAt           time.Time `json:"-"`
}

// Alert is the live volatility alert of a (user, symbol) pair. A new
// trigger overwrites the message and time instead of adding a row.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_alerts_user_symbol;not null" json:"-"`
	Symbol    string    `gorm:"uniqueIndex:idx_alerts_user_symbol;size:10;not null" json:"symbol"`
	Message   string    `gorm:"size:255;not null" json:"message"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// EnrichedAlert joins an alert with the matching preference. Threshold and
// Triggered are nil when the preference no longer exists.
type EnrichedAlert struct {
	ID                  uint      `json:"id"`
	Symbol              string    `json:"symbol"`
	Message             string    `json:"message"`
	CreatedAt           time.Time `json:"created_at"`
	VolatilityThreshold *float64  `json:"volatility_threshold"`
	AlertTriggered      *bool     `json:"alert_triggered"`
}
