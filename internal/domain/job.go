package domain

import "time"

// JobStatus is the total set of states a Job can occupy (spec.md §3 "Job
// (state machine)"). EXPIRED is reachable only via the scheduled sweep
// (ExpireOverdue), never via a direct caller-requested transition — see
// CanTransitionJob.
type JobStatus string

const (
	JobDraft   JobStatus = "DRAFT"
	JobActive  JobStatus = "ACTIVE"
	JobPaused  JobStatus = "PAUSED"
	JobClosed  JobStatus = "CLOSED"
	JobExpired JobStatus = "EXPIRED"
)

var jobTransitions = map[JobStatus]map[JobStatus]bool{
	JobDraft: {
		JobActive: true,
	},
	JobActive: {
		JobPaused:  true,
		JobClosed:  true,
		JobExpired: true, // sweep-only; TransitionTo rejects it for ordinary callers
	},
	JobPaused: {
		JobActive: true,
		JobClosed: true,
	},
	JobClosed:  {},
	JobExpired: {},
}

// CanTransitionJob reports whether (from, to) is declared. ACTIVE->EXPIRED
// is declared here but TransitionTo rejects it for ordinary callers; only
// ExpireOverdue (the scheduled sweep) may take that edge (spec.md §3:
// "only by scheduled sweep when applicationDeadline < today").
func CanTransitionJob(from, to JobStatus) bool {
	next, ok := jobTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Job is the job-posting aggregate of spec.md §3.
type Job struct {
	ID                 int64
	Status             JobStatus
	ApplicationDeadline time.Time
	ViewCount          int64
	ApplicationCount   int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TransitionTo moves the job to `to` via an ordinary caller-requested
// transition. It rejects ACTIVE->EXPIRED, which is reserved for
// ExpireOverdue.
func (j *Job) TransitionTo(to JobStatus, now time.Time) error {
	if to == JobExpired {
		return ErrInvalidStateTransition(string(j.Status), string(to))
	}
	if !CanTransitionJob(j.Status, to) {
		return ErrInvalidStateTransition(string(j.Status), string(to))
	}
	j.Status = to
	j.UpdatedAt = now.UTC()
	return nil
}

// ExpireOverdue is the only caller allowed to move ACTIVE->EXPIRED, and
// only when the deadline has passed. It is invoked by the scheduled sweep
// of spec.md §5 ("scheduled sweeps: ... job expiration").
func (j *Job) ExpireOverdue(now time.Time) error {
	if j.Status != JobActive {
		return ErrInvalidStateTransition(string(j.Status), string(JobExpired))
	}
	if !j.ApplicationDeadline.Before(now) {
		return ErrValidation("applicationDeadline has not passed")
	}
	j.Status = JobExpired
	j.UpdatedAt = now.UTC()
	return nil
}

func (j *Job) IncrementViewCount() { j.ViewCount++ }

func (j *Job) IncrementApplicationCount() { j.ApplicationCount++ }

func (j *Job) IsTerminal() bool {
	next, ok := jobTransitions[j.Status]
	return !ok || len(next) == 0
}
