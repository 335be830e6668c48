// Package models provides domain models for the stock tracker.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SymbolConfig holds the alert limits for one tracked instrument.
type SymbolConfig struct {
	Symbol     string
	Upper      decimal.Decimal
	Lower      decimal.Decimal
	PctTrigger decimal.Decimal
}

// PriceSample is a single current-price observation.
type PriceSample struct {
	Symbol string
	Price  decimal.Decimal
	AsOf   time.Time
}

// PricePoint is one close in a daily (or coarser) series.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// PriceSeries is an ascending-by-date close series for one symbol.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// Len returns the number of points.
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// IsEmpty reports whether the series has no points.
func (s PriceSeries) IsEmpty() bool {
	return len(s.Points) == 0
}

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent point.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
