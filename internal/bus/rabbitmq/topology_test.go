package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextTier_EscalatesWithAttempt(t *testing.T) {
	require.Equal(t, Tier10s, NextTier(1))
	require.Equal(t, Tier1m, NextTier(2))
	require.Equal(t, Tier10m, NextTier(3))
	require.Equal(t, Tier10m, NextTier(4), "attempts beyond the third tier stay on the longest tier")
}

func TestNextTier_TreatsZeroAndNegativeAsFirstTier(t *testing.T) {
	require.Equal(t, Tier10s, NextTier(0))
	require.Equal(t, Tier10s, NextTier(-1))
}
