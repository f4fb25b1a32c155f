package domain

import "time"

// ApplicationStatus is the total set of states an Application can occupy
// (spec.md §3 "Application (state machine)").
type ApplicationStatus string

const (
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusInterview   ApplicationStatus = "INTERVIEW"
	StatusOffered     ApplicationStatus = "OFFERED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
)

// applicationTransitions is the declared transition table. Terminal states
// map to an empty (nil) set. Additions require updating this table and the
// test matrix, never the transition logic.
var applicationTransitions = map[ApplicationStatus]map[ApplicationStatus]bool{
	StatusSubmitted: {
		StatusUnderReview: true,
		StatusRejected:    true,
		StatusWithdrawn:   true,
	},
	StatusUnderReview: {
		StatusShortlisted: true,
		StatusRejected:    true,
		StatusWithdrawn:   true,
	},
	StatusShortlisted: {
		StatusInterview: true,
		StatusRejected:  true,
		StatusWithdrawn: true,
	},
	StatusInterview: {
		StatusOffered:  true,
		StatusRejected: true,
		StatusWithdrawn: true,
	},
	StatusOffered: {
		StatusWithdrawn: true,
	},
	StatusRejected:  {},
	StatusWithdrawn: {},
}

// CanTransitionApplication reports whether (from, to) is in the declared
// table. It is total: every pair has a defined answer.
func CanTransitionApplication(from, to ApplicationStatus) bool {
	next, ok := applicationTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Application is the job-application aggregate of spec.md §3.
type Application struct {
	ID           int64
	UserID       int64
	JobID        int64
	Status       ApplicationStatus
	CoverLetter  string
	ResumeURL    string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewApplication constructs a freshly SUBMITTED application. Uniqueness of
// (userID, jobID) is enforced by the store, not here.
func NewApplication(userID, jobID int64, coverLetter, resumeURL string, now time.Time) (*Application, error) {
	if userID <= 0 || jobID <= 0 {
		return nil, ErrValidation("userId and jobId are required")
	}
	return &Application{
		UserID:      userID,
		JobID:       jobID,
		Status:      StatusSubmitted,
		CoverLetter: coverLetter,
		ResumeURL:   resumeURL,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// TransitionTo moves the application to `to`, failing with
// INVALID_STATE_TRANSITION when the move isn't in the declared table.
func (a *Application) TransitionTo(to ApplicationStatus, now time.Time) error {
	if !CanTransitionApplication(a.Status, to) {
		return ErrInvalidStateTransition(string(a.Status), string(to))
	}
	a.Status = to
	a.UpdatedAt = now.UTC()
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (a *Application) IsTerminal() bool {
	next, ok := applicationTransitions[a.Status]
	return !ok || len(next) == 0
}
