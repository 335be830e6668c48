package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Horizon is a lookback distance used by the report.
type Horizon struct {
	Label string
	Days  int
}

// Report horizons, today first.
var (
	HorizonToday = Horizon{Label: "today", Days: 0}
	Horizon1D    = Horizon{Label: "1d", Days: 1}
	Horizon1W    = Horizon{Label: "1w", Days: 7}
	Horizon1M    = Horizon{Label: "1m", Days: 30}
	Horizon1Y    = Horizon{Label: "1y", Days: 365}
)

// ReportEntry is the multi-horizon summary of one symbol.
// Any field may be absent (Valid == false) when history is missing.
type ReportEntry struct {
	Symbol     string
	TodayPrice decimal.NullDecimal
	Change1D   decimal.NullDecimal
	Change1W   decimal.NullDecimal
	Change1M   decimal.NullDecimal
	Change1Y   decimal.NullDecimal
}

// HasData reports whether at least today's price is known.
func (e ReportEntry) HasData() bool {
	return e.TodayPrice.Valid
}

// Report is an immutable multi-symbol summary in caller order.
type Report struct {
	Date    time.Time
	Entries []ReportEntry
}

// Entry returns the entry for symbol.
func (r Report) Entry(symbol string) (ReportEntry, bool) {
	for _, e := range r.Entries {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return ReportEntry{}, false
}

// Symbols returns the report's symbols in order.
func (r Report) Symbols() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Symbol
	}
	return out
}
