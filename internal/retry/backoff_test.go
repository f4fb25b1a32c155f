package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func cfg() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Multiplier: 2.0, Max: 30 * time.Second, MaxAttempts: 5}
}

func TestDelay_GrowsExponentiallyWithinJitterBounds(t *testing.T) {
	c := cfg()

	for attempt, base := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	} {
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		for i := 0; i < 50; i++ {
			d := Delay(c, attempt)
			require.GreaterOrEqualf(t, d, lo, "attempt=%d got=%s", attempt, d)
			require.LessOrEqualf(t, d, hi, "attempt=%d got=%s", attempt, d)
		}
	}
}

func TestDelay_CapsAtMax(t *testing.T) {
	c := cfg()
	d := Delay(c, 10)
	require.LessOrEqual(t, d, time.Duration(float64(c.Max)*1.2))
}

func TestDelay_ClampsAttemptBelowOne(t *testing.T) {
	c := cfg()
	d0 := Delay(c, 0)
	d1 := Delay(c, 1)
	lo := time.Duration(float64(c.Initial) * 0.8)
	hi := time.Duration(float64(c.Initial) * 1.2)
	require.GreaterOrEqual(t, d0, lo)
	require.LessOrEqual(t, d0, hi)
	_ = d1
}
