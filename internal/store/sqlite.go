package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"stock-tracker/internal/models"
)

const reportMarkerKey = "last_report_date"

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Cached close series; closes are decimal strings
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		bar_interval TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		close TEXT NOT NULL,
		fetched_at INTEGER NOT NULL,
		UNIQUE(symbol, bar_interval, timestamp)
	);

	-- One row per provider fetch; a cached range is only served when a fetch covered it
	CREATE TABLE IF NOT EXISTS candle_fetches (
		symbol TEXT NOT NULL,
		bar_interval TEXT NOT NULL,
		range_start INTEGER NOT NULL,
		range_end INTEGER NOT NULL,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY(symbol, bar_interval, range_start, range_end)
	);

	CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_interval ON candles(symbol, bar_interval);
	CREATE INDEX IF NOT EXISTS idx_alert_events_symbol ON alert_events(symbol);
	CREATE INDEX IF NOT EXISTS idx_alert_events_created ON alert_events(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles
// ============================================================================

// SaveCandles upserts closes for symbol and interval and records that
// [from, to) was fetched.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, interval string, from, to time.Time, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, bar_interval, timestamp, close, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	fetchedAt := time.Now().Unix()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, symbol, interval, p.Date.UTC(), p.Close.String(), fetchedAt); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO candle_fetches (symbol, bar_interval, range_start, range_end, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`, symbol, interval, from.Unix(), to.Unix(), fetchedAt); err != nil {
		return fmt.Errorf("failed to record candle fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles returns closes dated in [from, to), oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, close
		FROM candles
		WHERE symbol = ? AND bar_interval = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, symbol, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var (
			ts  time.Time
			raw string
		)
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid close %q: %w", raw, err)
		}
		points = append(points, models.PricePoint{Date: ts, Close: d})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return points, nil
}

// GetCandlesFreshness returns when a single fetch covering [from, to) was
// last stored, or the zero time if no fetch covers the whole range.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, interval string, from, to time.Time) (time.Time, error) {
	var fetchedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(fetched_at) FROM candle_fetches
		WHERE symbol = ? AND bar_interval = ? AND range_start <= ? AND range_end >= ?
	`, symbol, interval, from.Unix(), to.Unix()).Scan(&fetchedAt)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !fetchedAt.Valid {
		return time.Time{}, nil
	}
	return time.Unix(fetchedAt.Int64, 0), nil
}

// ============================================================================
// Alert journal
// ============================================================================

// SaveAlert records an emitted event. Saving the same event twice is a no-op.
func (s *SQLiteStore) SaveAlert(ctx context.Context, ev models.AlertEvent) error {
	rec := recordFor(ev)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alert_events (id, kind, symbol, direction, price, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Kind), rec.Symbol, rec.Direction, rec.Price, rec.Detail, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// GetAlerts returns journaled events, newest first.
func (s *SQLiteStore) GetAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error) {
	query := `SELECT id, kind, symbol, direction, price, detail, created_at FROM alert_events`
	var (
		where []string
		args  []interface{}
	)
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Symbol, &r.Direction, &r.Price, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		r.Kind = models.EventKind(kind)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return records, nil
}

func recordFor(ev models.AlertEvent) AlertRecord {
	meta := ev.Meta()
	rec := AlertRecord{ID: meta.ID, Kind: ev.Kind(), CreatedAt: meta.At}
	switch e := ev.(type) {
	case models.ThresholdCrossed:
		rec.Symbol = e.Symbol
		rec.Direction = string(e.Direction)
		rec.Price = e.Price.String()
		rec.Detail = "threshold=" + e.Threshold.String()
	case models.MomentumMove:
		rec.Symbol = e.Symbol
		rec.Direction = string(e.Direction)
		rec.Price = e.Price.String()
		rec.Detail = "pct=" + e.PctChange.StringFixed(2)
	case models.DailyReport:
		rec.Detail = fmt.Sprintf("date=%s symbols=%d", e.Report.Date.Format("2006-01-02"), len(e.Report.Entries))
	}
	return rec
}

// ============================================================================
// Report marker
// ============================================================================

// GetLastReportDate returns the date of the last delivered daily report.
func (s *SQLiteStore) GetLastReportDate(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, reportMarkerKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read report marker: %w", err)
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid report marker %q: %w", value, err)
	}
	return d, true, nil
}

// SetLastReportDate stores the calendar date of the last delivered report.
func (s *SQLiteStore) SetLastReportDate(ctx context.Context, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO meta (key, value, updated_at)
		VALUES (?, ?, ?)
	`, reportMarkerKey, date.Format("2006-01-02"), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set report marker: %w", err)
	}
	return nil
}
