package domain

import "time"

// ActionPolicy is a pure, total report of which operations remain
// available to a caller given an Application's state and whether the cache
// layer is currently degraded. Grounded on the teacher's
// CalculateActionPolicy (bff-service), generalized from event/participation
// to job-application. It answers spec.md §9's open question about
// closed-job side effects indirectly: it never infers or forces a
// transition, it only reports what a caller may attempt.
type ActionPolicy struct {
	CanWithdraw bool
	CanView     bool
	Reason      string
}

// ApplicationActionPolicy computes what a principal may do with their own
// application right now. CanWithdraw follows the application transition
// table and CanView is always true for a known status. The result does not
// depend on isDegraded; a caller serving a stale copy flags that itself.
func ApplicationActionPolicy(status ApplicationStatus, isDegraded bool) ActionPolicy {
	if status == "" {
		return ActionPolicy{Reason: "not_found"}
	}

	canWithdraw := CanTransitionApplication(status, StatusWithdrawn)

	reason := ""
	if !canWithdraw {
		reason = "already_terminal"
	}

	return ActionPolicy{
		CanWithdraw: canWithdraw,
		CanView:     true,
		Reason:      reason,
	}
}

// JobActionPolicy computes whether a job accepts new applications right
// now. A closed or expired job never accepts new applications regardless
// of degradation; degradation only affects whether the view was served
// from a fresh read or a stale shadow copy (spec.md §4.5.5).
func JobActionPolicy(status JobStatus, deadline time.Time, now time.Time, isDegraded bool) ActionPolicy {
	if status != JobActive {
		return ActionPolicy{Reason: "job_not_active"}
	}
	if !deadline.IsZero() && deadline.Before(now) {
		return ActionPolicy{Reason: "deadline_passed"}
	}
	return ActionPolicy{CanView: true, CanWithdraw: false}
}
