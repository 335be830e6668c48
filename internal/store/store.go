// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"stock-tracker/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	CandleStore
	AlertJournal
	MarkerStore
	Close() error
}

// CandleStore caches close series per symbol and interval.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, interval string, from, to time.Time, points []models.PricePoint) error
	GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.PricePoint, error)
	GetCandlesFreshness(ctx context.Context, symbol, interval string, from, to time.Time) (time.Time, error)
}

// AlertJournal records emitted alert events.
type AlertJournal interface {
	SaveAlert(ctx context.Context, ev models.AlertEvent) error
	GetAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)
}

// MarkerStore persists the date of the last delivered daily report so a
// restart on the same day does not send it twice.
type MarkerStore interface {
	GetLastReportDate(ctx context.Context) (time.Time, bool, error)
	SetLastReportDate(ctx context.Context, date time.Time) error
}

// AlertRecord is a journaled alert event.
type AlertRecord struct {
	ID        string
	Kind      models.EventKind
	Symbol    string
	Direction string
	Price     string
	Detail    string
	CreatedAt time.Time
}

// AlertFilter narrows an alert journal query.
type AlertFilter struct {
	Symbol string
	Kind   models.EventKind
	Since  time.Time
	Limit  int
}
