package utils

import "math"

// IsFinite reports whether v is a usable number. NaN and Inf coming off the
// wire are treated as "value unchanged" by callers, never propagated.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FiniteOr returns v when finite, fallback otherwise.
func FiniteOr(v, fallback float64) float64 {
	if IsFinite(v) {
		return v
	}
	return fallback
}
