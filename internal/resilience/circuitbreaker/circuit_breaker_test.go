package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreaker_TripsAtThresholdOverWindow(t *testing.T) {
	b := New("db", Config{Window: 4, Threshold: 0.5, OpenWait: time.Minute})

	require.Equal(t, Closed, b.State())

	// two failures, two successes: 50% failure ratio over a filled window trips it.
	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))

	require.Equal(t, Open, b.State())
}

func TestBreaker_OpenRejectsWithoutCallingFn(t *testing.T) {
	b := New("cache", Config{Window: 2, Threshold: 0.5, OpenWait: time.Minute})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Equal(t, Open, b.State())

	called := false
	err := b.Call(context.Background(), func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, called)
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b := New("channel", Config{Window: 2, Threshold: 0.5, OpenWait: 10 * time.Millisecond})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	require.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b := New("channel", Config{Window: 2, Threshold: 0.5, OpenWait: 10 * time.Millisecond})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))

	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Equal(t, Open, b.State())
}

func TestBreaker_Available(t *testing.T) {
	b := New("db", Config{Window: 2, Threshold: 0.5, OpenWait: time.Minute})
	require.True(t, b.Available())
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errBoom }))
	require.False(t, b.Available())
}
