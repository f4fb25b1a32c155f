package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allJobStatuses = []JobStatus{JobDraft, JobActive, JobPaused, JobClosed, JobExpired}

func TestJobTransitionTotality(t *testing.T) {
	declared := map[[2]JobStatus]bool{
		{JobDraft, JobActive}:   true,
		{JobActive, JobPaused}:  true,
		{JobActive, JobClosed}:  true,
		{JobActive, JobExpired}: true,
		{JobPaused, JobActive}:  true,
		{JobPaused, JobClosed}:  true,
	}

	for _, from := range allJobStatuses {
		for _, to := range allJobStatuses {
			want := declared[[2]JobStatus{from, to}]
			require.Equalf(t, want, CanTransitionJob(from, to), "from=%s to=%s", from, to)
		}
	}
}

func TestJob_TransitionTo_RejectsExpireAsOrdinaryMove(t *testing.T) {
	j := &Job{Status: JobActive, ApplicationDeadline: time.Now().Add(-time.Hour)}
	err := j.TransitionTo(JobExpired, time.Now())
	require.Error(t, err)
	require.Equal(t, JobActive, j.Status)
}

func TestJob_ExpireOverdue_OnlyWhenPastDeadline(t *testing.T) {
	now := time.Now()
	j := &Job{Status: JobActive, ApplicationDeadline: now.Add(time.Hour)}
	require.Error(t, j.ExpireOverdue(now))

	j2 := &Job{Status: JobActive, ApplicationDeadline: now.Add(-time.Hour)}
	require.NoError(t, j2.ExpireOverdue(now))
	require.Equal(t, JobExpired, j2.Status)
}

func TestJob_ExpireOverdue_RequiresActive(t *testing.T) {
	j := &Job{Status: JobPaused, ApplicationDeadline: time.Now().Add(-time.Hour)}
	require.Error(t, j.ExpireOverdue(time.Now()))
}

func TestJob_PauseResume(t *testing.T) {
	j := &Job{Status: JobActive}
	require.NoError(t, j.TransitionTo(JobPaused, time.Now()))
	require.NoError(t, j.TransitionTo(JobActive, time.Now()))
	require.NoError(t, j.TransitionTo(JobClosed, time.Now()))
	require.True(t, j.IsTerminal())
}
