package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after))
}

func TestFixed(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	clk := Fixed(at)
	require.True(t, clk.Now().Equal(at))
	require.Equal(t, time.UTC, clk.Now().Location())
	require.Equal(t, clk.Now(), clk.Now())
}
