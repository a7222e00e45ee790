package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// Valid reports whether t is BUY or SELL.
func (t TransactionType) Valid() bool { return t == Buy || t == Sell }

// Transaction is one immutable ledger entry. Quantity is always positive,
// the direction is carried by Type.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index:idx_transactions_user_symbol;not null" json:"user_id"`
	Symbol      string          `gorm:"index:idx_transactions_user_symbol;size:10;not null" json:"symbol"`
	Name        string          `gorm:"size:100" json:"name"`
	Type        TransactionType `gorm:"size:4;not null" json:"type"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	GrossAmount decimal.Decimal `gorm:"type:numeric(16,2);not null" json:"gross_amount"`
	Timestamp   time.Time       `gorm:"index;not null" json:"timestamp"`
	CreatedAt   time.Time       `json:"-"`
}

// NewTransaction builds a ledger entry priced at price rounded to cents.
func NewTransaction(userID uint, symbol, name string, typ TransactionType, price decimal.Decimal, quantity int64, ts time.Time) Transaction {
	price = price.Round(2)
	return Transaction{
		UserID:      userID,
		Symbol:      symbol,
		Name:        name,
		Type:        typ,
		Price:       price,
		Quantity:    quantity,
		GrossAmount: price.Mul(decimal.NewFromInt(quantity)),
		Timestamp:   ts,
	}
}

// Delta returns the signed quantity: positive for a buy, negative for a sale.
func (t Transaction) Delta() int64 {
	if t.Type == Sell {
		return -t.Quantity
	}
	return t.Quantity
}

// Holding is the position derived from all transactions of a (user, symbol)
// pair. It only exists while the net quantity is positive.
type Holding struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"uniqueIndex:idx_holdings_user_symbol;not null" json:"user_id"`
	Symbol      string          `gorm:"uniqueIndex:idx_holdings_user_symbol;size:10;not null" json:"symbol"`
	Name        string          `gorm:"size:255" json:"name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:numeric(16,4);not null" json:"average_cost"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	MarketValue decimal.Decimal `gorm:"type:numeric(16,2);not null" json:"market_value"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockPrice is a quote observed from the price feed, one row per symbol and
// timestamp.
type StockPrice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"uniqueIndex:idx_stock_prices_symbol_ts;size:10;not null" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"price"`
	Timestamp time.Time       `gorm:"uniqueIndex:idx_stock_prices_symbol_ts;not null" json:"timestamp"`
}

// Position aggregates a user's transactions in one symbol.
type Position struct {
	Symbol  string
	Name    string
	Bought  int64
	Sold    int64
	BuyCost decimal.Decimal
}

// NetQuantity is bought minus sold shares.
func (p Position) NetQuantity() int64 { return p.Bought - p.Sold }
