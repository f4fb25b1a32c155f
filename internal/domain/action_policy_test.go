package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplicationActionPolicy_UnknownStatusReportsNotFound(t *testing.T) {
	p := ApplicationActionPolicy("", false)
	require.False(t, p.CanWithdraw)
	require.False(t, p.CanView)
	require.Equal(t, "not_found", p.Reason)
}

func TestApplicationActionPolicy_SubmittedCanWithdraw(t *testing.T) {
	p := ApplicationActionPolicy(StatusSubmitted, false)
	require.True(t, p.CanWithdraw)
	require.True(t, p.CanView)
	require.Empty(t, p.Reason)
}

func TestApplicationActionPolicy_TerminalCannotWithdraw(t *testing.T) {
	p := ApplicationActionPolicy(StatusRejected, false)
	require.False(t, p.CanWithdraw)
	require.True(t, p.CanView)
	require.Equal(t, "already_terminal", p.Reason)
}

func TestApplicationActionPolicy_DegradedStillAllowsWithdraw(t *testing.T) {
	p := ApplicationActionPolicy(StatusSubmitted, true)
	require.True(t, p.CanWithdraw)
}

func TestJobActionPolicy_NonActiveJobRejectsApplications(t *testing.T) {
	p := JobActionPolicy(JobDraft, time.Time{}, time.Now(), false)
	require.False(t, p.CanView)
	require.Equal(t, "job_not_active", p.Reason)
}

func TestJobActionPolicy_PastDeadlineRejectsApplications(t *testing.T) {
	now := time.Now()
	p := JobActionPolicy(JobActive, now.Add(-time.Hour), now, false)
	require.Equal(t, "deadline_passed", p.Reason)
}

func TestJobActionPolicy_ActiveBeforeDeadlineAccepts(t *testing.T) {
	now := time.Now()
	p := JobActionPolicy(JobActive, now.Add(time.Hour), now, false)
	require.True(t, p.CanView)
	require.Empty(t, p.Reason)
}

func TestJobActionPolicy_ZeroDeadlineNeverExpires(t *testing.T) {
	p := JobActionPolicy(JobActive, time.Time{}, time.Now(), true)
	require.True(t, p.CanView)
}
