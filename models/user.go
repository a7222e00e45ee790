package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
}

// All returns every model the service persists, in migration order.
func All() []any {
	return []any{&User{}, &Transaction{}, &Holding{}, &UserPreference{}, &Alert{}, &StockPrice{}}
}
