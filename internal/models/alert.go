package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertState holds the edge-trigger flags for one symbol.
// A flag is true only while its condition holds on the latest sample.
type AlertState struct {
	AboveUpper  bool
	BelowLower  bool
	PctBreached bool
	LastPrice   decimal.Decimal
	LastChange  decimal.NullDecimal
	UpdatedAt   time.Time
}

// EventKind identifies the variant of an AlertEvent.
type EventKind string

const (
	EventThresholdCrossed EventKind = "threshold_crossed"
	EventMomentumMove     EventKind = "momentum_move"
	EventDailyReport      EventKind = "daily_report"
)

// ThresholdDirection is the band edge that was crossed.
type ThresholdDirection string

const (
	ThresholdUpper ThresholdDirection = "upper"
	ThresholdLower ThresholdDirection = "lower"
)

// MoveDirection is the sign of a momentum move.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// AlertEvent is produced by the monitor and consumed by notification sinks.
// The concrete types are ThresholdCrossed, MomentumMove and DailyReport.
type AlertEvent interface {
	Kind() EventKind
	Meta() EventMeta
}

// EventMeta carries identity and creation time for an event.
type EventMeta struct {
	ID string
	At time.Time
}

// Meta returns the event metadata.
func (m EventMeta) Meta() EventMeta {
	return m
}

// NewEventMeta stamps a fresh event id.
func NewEventMeta(at time.Time) EventMeta {
	return EventMeta{ID: uuid.NewString(), At: at}
}

// ThresholdCrossed fires when price enters the region beyond a threshold.
type ThresholdCrossed struct {
	EventMeta
	Symbol    string
	Direction ThresholdDirection
	Price     decimal.Decimal
	Threshold decimal.Decimal
}

// Kind implements AlertEvent.
func (ThresholdCrossed) Kind() EventKind { return EventThresholdCrossed }

// MomentumMove fires when |change vs previous close| reaches the trigger.
type MomentumMove struct {
	EventMeta
	Symbol    string
	Direction MoveDirection
	PctChange decimal.Decimal
	Price     decimal.Decimal
}

// Kind implements AlertEvent.
func (MomentumMove) Kind() EventKind { return EventMomentumMove }

// DailyReport carries the scheduled once-a-day report.
type DailyReport struct {
	EventMeta
	Report Report
}

// Kind implements AlertEvent.
func (DailyReport) Kind() EventKind { return EventDailyReport }

// EventSymbol returns the symbol an event refers to, or "" for reports.
func EventSymbol(ev AlertEvent) string {
	switch e := ev.(type) {
	case ThresholdCrossed:
		return e.Symbol
	case MomentumMove:
		return e.Symbol
	default:
		return ""
	}
}
