package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"stock-tracker/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Property: closes saved for a symbol come back unchanged and in date order.
func TestProperty_CandleRoundTrip(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := 0

	properties.Property("save then load preserves closes", prop.ForAll(
		func(cents []int64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("SYM%d", run)

			points := make([]models.PricePoint, len(cents))
			for i, c := range cents {
				points[i] = models.PricePoint{
					Date:  base.AddDate(0, 0, i),
					Close: decimal.New(c, -2),
				}
			}
			if err := store.SaveCandles(ctx, symbol, "1d", base, base.AddDate(0, 0, len(cents)), points); err != nil {
				return false
			}

			got, err := store.GetCandles(ctx, symbol, "1d", base, base.AddDate(0, 0, len(cents)))
			if err != nil || len(got) != len(points) {
				return false
			}
			for i := range got {
				if !got[i].Date.Equal(points[i].Date) || !got[i].Close.Equal(points[i].Close) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(15, gen.Int64Range(1, 10_000_000)),
	))

	properties.TestingRun(t)
}

func TestGetCandles_EndExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	points := []models.PricePoint{
		{Date: base, Close: decimal.NewFromInt(10)},
		{Date: base.AddDate(0, 0, 1), Close: decimal.NewFromInt(11)},
	}
	if err := store.SaveCandles(ctx, "AAPL", "1d", base, base.AddDate(0, 0, 2), points); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	got, err := store.GetCandles(ctx, "AAPL", "1d", base, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 point, got %d", len(got))
	}

	fresh, err := store.GetCandlesFreshness(ctx, "AAPL", "1d", base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("GetCandlesFreshness: %v", err)
	}
	if fresh.IsZero() {
		t.Error("expected non-zero freshness after save")
	}

	fresh, err = store.GetCandlesFreshness(ctx, "MSFT", "1d", base, base.AddDate(0, 0, 2))
	if err != nil || !fresh.IsZero() {
		t.Errorf("expected zero freshness for empty cache, got %v, %v", fresh, err)
	}
}

func TestGetCandlesFreshness_RequiresCoveringFetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	points := []models.PricePoint{
		{Date: start.AddDate(0, 0, 1), Close: decimal.NewFromInt(10)},
		{Date: start.AddDate(0, 0, 2), Close: decimal.NewFromInt(11)},
	}
	if err := store.SaveCandles(ctx, "NVDA", "1d", start, end, points); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}

	tests := []struct {
		name     string
		from, to time.Time
		covered  bool
	}{
		{"same range", start, end, true},
		{"inner range", start.AddDate(0, 0, 1), end.AddDate(0, 0, -1), true},
		{"wider start", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end, false},
		{"later end", start, end.AddDate(0, 0, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, err := store.GetCandlesFreshness(ctx, "NVDA", "1d", tt.from, tt.to)
			if err != nil {
				t.Fatalf("GetCandlesFreshness: %v", err)
			}
			if fresh.IsZero() == tt.covered {
				t.Errorf("covered = %v, want %v", !fresh.IsZero(), tt.covered)
			}
		})
	}
}

func TestAlertJournal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

	up := models.ThresholdCrossed{
		EventMeta: models.NewEventMeta(at),
		Symbol:    "NVDA",
		Direction: models.ThresholdUpper,
		Price:     decimal.RequireFromString("131.50"),
		Threshold: decimal.NewFromInt(130),
	}
	move := models.MomentumMove{
		EventMeta: models.NewEventMeta(at.Add(time.Minute)),
		Symbol:    "TSLA",
		Direction: models.MoveDown,
		PctChange: decimal.RequireFromString("-3.25"),
		Price:     decimal.NewFromInt(240),
	}

	for _, ev := range []models.AlertEvent{up, move, up} {
		if err := store.SaveAlert(ctx, ev); err != nil {
			t.Fatalf("SaveAlert: %v", err)
		}
	}

	all, err := store.GetAlerts(ctx, AlertFilter{})
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected duplicate save to be ignored, got %d records", len(all))
	}
	if all[0].Symbol != "TSLA" {
		t.Errorf("expected newest first, got %s", all[0].Symbol)
	}

	nvda, err := store.GetAlerts(ctx, AlertFilter{Symbol: "NVDA", Kind: models.EventThresholdCrossed})
	if err != nil {
		t.Fatalf("GetAlerts: %v", err)
	}
	if len(nvda) != 1 || nvda[0].Direction != "upper" || nvda[0].Price != "131.5" {
		t.Errorf("unexpected NVDA records: %+v", nvda)
	}
}

func TestReportMarker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetLastReportDate(ctx); err != nil || ok {
		t.Fatalf("expected no marker, got ok=%v err=%v", ok, err)
	}

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if err := store.SetLastReportDate(ctx, day); err != nil {
		t.Fatalf("SetLastReportDate: %v", err)
	}
	got, ok, err := store.GetLastReportDate(ctx)
	if err != nil || !ok {
		t.Fatalf("expected marker, got ok=%v err=%v", ok, err)
	}
	if got.Format("2006-01-02") != "2024-06-03" {
		t.Errorf("unexpected marker %v", got)
	}
}
