package utils

import (
	"strings"
	"time"
)

// expiration formats seen from the bridge and the sync stream.
var expirationLayouts = []string{"20060102", "2006-01-02", "01/02/2006"}

// NormalizeExpiration canonicalizes an option expiration to YYYYMMDD so
// that intents and confirmed orders compare regardless of source format.
// Unparsable input is returned trimmed rather than rejected; comparison
// then falls back to literal equality.
func NormalizeExpiration(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("20060102")
		}
	}
	return s
}

// ResetTime resets the time component based on the granularity specified.
// Pass "minute" to reset seconds to zero.
// Pass "hour" to reset minutes and seconds to zero.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	default:
		return t
	}
}
