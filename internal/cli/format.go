package cli

import (
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = "02-Jan-2006 15:04:05"
)

// FormatDate renders a trading day as used in CSV and table output.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// FormatDateTime renders a journal timestamp in its own location.
func FormatDateTime(t time.Time) string { return t.Format(stampLayout) }

// FormatDuration renders an age using its two largest units, e.g. "3h 12m".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %dm", secs/3600, secs%3600/60)
	}
	return fmt.Sprintf("%dd %dh", secs/86400, secs%86400/3600)
}

// TruncateString shortens s to at most maxLen runes, ending in "..." when
// there is room for it.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	switch {
	case len(r) <= maxLen:
		return s
	case maxLen <= 3:
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
