// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable    = errors.New("data unavailable")
	ErrProviderError      = errors.New("market data provider error")
	ErrInsufficientSeries = errors.New("insufficient series for calculation")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrNoData             = errors.New("no data found")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrTimeout            = errors.New("operation timed out")
	ErrQueueFull          = errors.New("event queue full")
	ErrNotConfigured      = errors.New("not configured")
)

// ProviderError represents a failed call to a market data provider.
// It matches ErrProviderError with errors.Is.
type ProviderError struct {
	Provider  string
	Operation string
	Symbol    string
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s] %s %s: %v", e.Provider, e.Operation, e.Symbol, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s %s", e.Provider, e.Operation, e.Symbol)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProviderError) match any ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, operation, symbol string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Symbol:    symbol,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap ties every validation failure to ErrConfigInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRecoverable reports whether err is a per-symbol data problem that a
// caller should log and skip rather than propagate.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrTimeout)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
