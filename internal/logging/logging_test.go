package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-tracker/internal/models"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestRotatingFile(t *testing.T) {
	assert.Nil(t, rotatingFile(LogConfig{File: false, FilePath: "x.log"}))
	assert.Nil(t, rotatingFile(LogConfig{File: true}))
	assert.NotNil(t, rotatingFile(LogConfig{File: true, FilePath: filepath.Join(t.TempDir(), "logs", "tracker.log")}))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogTick(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := WithComponent(zerolog.New(&buf), "monitor")
	LogTick(logger, models.PriceSample{
		Symbol: "NVDA",
		Price:  decimal.RequireFromString("131.5"),
		AsOf:   time.Date(2024, 6, 17, 15, 0, 0, 0, time.UTC),
	}, decimal.NewNullDecimal(decimal.RequireFromString("1.234")))

	m := decodeLine(t, &buf)
	assert.Equal(t, "sample", m["event"])
	assert.Equal(t, "131.50", m["price"])
	assert.Equal(t, "1.23", m["change_pct"])
	assert.Equal(t, "NVDA", m["symbol"])
	assert.Equal(t, "monitor", m["component"])
}

func TestLogAPICall_FailureAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	LogAPICall(logger, "yahoo", "history", time.Second, nil)
	assert.Zero(t, buf.Len(), "successful calls log at debug")

	LogAPICall(logger, "yahoo", "history", time.Second, errors.New("status 502"))
	m := decodeLine(t, &buf)
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "status 502", m["error"])
	assert.Equal(t, "yahoo", m["provider"])
}
