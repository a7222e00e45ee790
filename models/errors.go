package models

import (
	"errors"
	"fmt"
)

var (
	// ErrPriceUnavailable means the price feed returned no usable data.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInsufficientPosition means the user holds none or too little of a symbol.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrInsufficientHistory means too few prices to compute a statistic.
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmptyPortfolio      = errors.New("empty portfolio")
	ErrNotFound            = errors.New("not found")
)

// SymbolError attaches the user and symbol an error relates to.
type SymbolError struct {
	UserID uint
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("user %d: %v", e.UserID, e.Err)
	}
	if e.UserID == 0 {
		return fmt.Sprintf("%s: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("user %d, %s: %v", e.UserID, e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// Errorf wraps a formatted error around kind, annotated with user and symbol.
// kind stays reachable with errors.Is.
func Errorf(userID uint, symbol string, kind error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &SymbolError{UserID: userID, Symbol: symbol, Err: fmt.Errorf("%w: %s", kind, msg)}
}

// WithSymbol annotates err with the user and symbol, keeping nil as nil.
func WithSymbol(userID uint, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var se *SymbolError
	if errors.As(err, &se) {
		return err
	}
	return &SymbolError{UserID: userID, Symbol: symbol, Err: err}
}
