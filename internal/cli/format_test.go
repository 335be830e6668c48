package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{3*time.Hour + 12*time.Minute, "3h 12m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "NVDA crossed", TruncateString("NVDA crossed", 12))
	assert.Equal(t, "NVDA c...", TruncateString("NVDA crossed upper", 9))
	assert.Equal(t, "NV", TruncateString("NVDA", 2))
	assert.Equal(t, "▲▲...", TruncateString("▲▲▲▲▲▲", 5))
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "2024-03-07", FormatDate(ts))
	assert.Equal(t, "07-Mar-2024 15:04:05", FormatDateTime(ts))
}
