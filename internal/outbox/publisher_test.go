package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelay_GrowsExponentiallyWithinJitterBounds(t *testing.T) {
	for attempt, base := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	} {
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		for i := 0; i < 50; i++ {
			d := backoffDelay(attempt)
			require.GreaterOrEqualf(t, d, lo, "attempt=%d got=%s", attempt, d)
			require.LessOrEqualf(t, d, hi, "attempt=%d got=%s", attempt, d)
		}
	}
}

func TestBackoffDelay_CapsAtThirtySeconds(t *testing.T) {
	d := backoffDelay(10)
	require.LessOrEqual(t, d, time.Duration(float64(30*time.Second)*1.2))
}

func TestNewPublisher_DefaultsPollIntervalAndBatchSize(t *testing.T) {
	p := NewPublisher(nil, nil, 0, 0)
	require.Equal(t, time.Second, p.pollInterval)
	require.Equal(t, 100, p.batchSize)
	require.Equal(t, 5*time.Second, p.inFlight)
}
