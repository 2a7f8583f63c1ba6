package utils_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradeassistant/src/utils"
)

func TestNormalizeExpiration(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"20260320", "20260320"},
		{"2026-03-20", "20260320"},
		{"03/20/2026", "20260320"},
		{"  20260320  ", "20260320"},
		{"", ""},
		{"next friday", "next friday"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, utils.NormalizeExpiration(tc.in), "input %q", tc.in)
	}
}

func TestIsFinite(t *testing.T) {
	require.True(t, utils.IsFinite(0))
	require.True(t, utils.IsFinite(-12.5))
	require.False(t, utils.IsFinite(math.NaN()))
	require.False(t, utils.IsFinite(math.Inf(1)))
	require.False(t, utils.IsFinite(math.Inf(-1)))
}

func TestFiniteOr(t *testing.T) {
	require.InDelta(t, 4.2, utils.FiniteOr(4.2, 0), 1e-9)
	require.InDelta(t, 0, utils.FiniteOr(math.NaN(), 0), 1e-9)
	require.InDelta(t, 1, utils.FiniteOr(math.Inf(1), 1), 1e-9)
}

func TestResetTime(t *testing.T) {
	ts := time.Date(2026, 3, 20, 14, 35, 42, 0, time.UTC)

	require.Equal(t, time.Date(2026, 3, 20, 14, 35, 0, 0, time.UTC), utils.ResetTime(ts, "minute"))
	require.Equal(t, time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC), utils.ResetTime(ts, "hour"))
	require.Equal(t, ts, utils.ResetTime(ts, "unknown"))
}
