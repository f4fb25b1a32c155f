package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allApplicationStatuses = []ApplicationStatus{
	StatusSubmitted, StatusUnderReview, StatusShortlisted,
	StatusInterview, StatusOffered, StatusRejected, StatusWithdrawn,
}

// TestApplicationTransitionTotality verifies spec.md §8 invariant 5:
// canTransitionTo(from, to) is true iff (from, to) is in the declared table.
func TestApplicationTransitionTotality(t *testing.T) {
	declared := map[[2]ApplicationStatus]bool{
		{StatusSubmitted, StatusUnderReview}: true,
		{StatusSubmitted, StatusRejected}:     true,
		{StatusSubmitted, StatusWithdrawn}:    true,
		{StatusUnderReview, StatusShortlisted}: true,
		{StatusUnderReview, StatusRejected}:    true,
		{StatusUnderReview, StatusWithdrawn}:   true,
		{StatusShortlisted, StatusInterview}:   true,
		{StatusShortlisted, StatusRejected}:    true,
		{StatusShortlisted, StatusWithdrawn}:   true,
		{StatusInterview, StatusOffered}:       true,
		{StatusInterview, StatusRejected}:      true,
		{StatusInterview, StatusWithdrawn}:     true,
		{StatusOffered, StatusWithdrawn}:       true,
	}

	for _, from := range allApplicationStatuses {
		for _, to := range allApplicationStatuses {
			want := declared[[2]ApplicationStatus{from, to}]
			got := CanTransitionApplication(from, to)
			require.Equalf(t, want, got, "from=%s to=%s", from, to)
		}
	}
}

func TestApplicationTransitionTo_InvalidFailsWithCode(t *testing.T) {
	now := time.Now()
	app := &Application{Status: StatusRejected}
	err := app.TransitionTo(StatusUnderReview, now)
	require.Error(t, err)

	appErr, ok := err.(*AppError)
	require.True(t, ok)
	require.Equal(t, CodeInvalidStateTransition, appErr.Code)
}

func TestApplicationTransitionTo_ValidMovesState(t *testing.T) {
	now := time.Now()
	app := &Application{Status: StatusSubmitted}
	require.NoError(t, app.TransitionTo(StatusUnderReview, now))
	require.Equal(t, StatusUnderReview, app.Status)
}

func TestApplication_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []ApplicationStatus{StatusRejected, StatusWithdrawn} {
		app := &Application{Status: terminal}
		require.True(t, app.IsTerminal())
		for _, to := range allApplicationStatuses {
			require.Error(t, app.TransitionTo(to, time.Now()))
		}
	}
}

func TestNewApplication_RequiresIdentities(t *testing.T) {
	_, err := NewApplication(0, 1, "hi", "", time.Now())
	require.Error(t, err)

	app, err := NewApplication(7, 42, "hi", "", time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, app.Status)
}
