// Package domain holds the core's aggregates, their typed error taxonomy,
// and the total state-machine helpers of spec.md §4.8.
package domain

import "fmt"

// ErrCode enumerates the error kinds of spec.md §7. These are stable over
// time; callers switch on Code, never on Message.
type ErrCode string

const (
	CodeValidation           ErrCode = "VALIDATION"
	CodeNotFound             ErrCode = "NOT_FOUND"
	CodeConflict             ErrCode = "CONFLICT"
	CodeUnauthorized         ErrCode = "UNAUTHORIZED"
	CodeForbidden            ErrCode = "FORBIDDEN"
	CodeInvalidStateTransition ErrCode = "INVALID_STATE_TRANSITION"
	CodeRateLimited          ErrCode = "RATE_LIMITED"
	CodeServiceUnavailable   ErrCode = "SERVICE_UNAVAILABLE"
	CodeTransient            ErrCode = "TRANSIENT"
	CodePermanent            ErrCode = "PERMANENT"
	CodeInternal             ErrCode = "INTERNAL"
)

// AppError is the typed result sum that replaces exception-as-control-flow
// (spec.md §9). Meta carries structured extras such as RetryAfterSeconds.
type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func newErr(code ErrCode, msg string) error { return &AppError{Code: code, Message: msg} }

func ErrValidation(msg string) error   { return newErr(CodeValidation, msg) }
func ErrNotFound(msg string) error     { return newErr(CodeNotFound, msg) }
func ErrConflict(msg string) error     { return newErr(CodeConflict, msg) }
func ErrUnauthorized(msg string) error { return newErr(CodeUnauthorized, msg) }
func ErrForbidden(msg string) error    { return newErr(CodeForbidden, msg) }
func ErrInternal(msg string) error     { return newErr(CodeInternal, msg) }
func ErrPermanent(msg string) error    { return newErr(CodePermanent, msg) }
func ErrTransient(msg string) error    { return newErr(CodeTransient, msg) }

// ErrInvalidStateTransition is returned by every state-machine helper when
// a requested move isn't in the declared transition table (spec.md §4.8).
func ErrInvalidStateTransition(from, to string) error {
	return &AppError{
		Code:    CodeInvalidStateTransition,
		Message: fmt.Sprintf("cannot transition from %q to %q", from, to),
		Meta:    map[string]string{"from": from, "to": to},
	}
}

// ErrServiceUnavailable carries no retry-after; it is produced by the
// circuit breaker / bulkhead fallback path, not by a client-facing quota.
func ErrServiceUnavailable(msg string) error { return newErr(CodeServiceUnavailable, msg) }

// ErrRateLimited carries retryAfterSeconds per spec.md §7.
func ErrRateLimited(retryAfterSeconds int) error {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		Meta:    map[string]string{"retryAfterSeconds": fmt.Sprintf("%d", retryAfterSeconds)},
	}
}
