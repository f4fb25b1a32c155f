// Package response renders the error-body shape of spec.md §7 using
// go-chi/render, grounded on event-service's
// internal/transport/http/response/response.go (domain.AppError ->
// HTTP status mapping) and join-service's
// internal/transport/rest/response/response.go.
package response

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/baechuer/jobcore/internal/domain"
)

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

func statusFor(code domain.ErrCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict, domain.CodeInvalidStateTransition:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Err renders err as the spec.md §7 error body, mapping *domain.AppError
// to its declared HTTP status and falling back to 500/internal for
// anything else so handlers never need their own error-to-status table.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var ae *domain.AppError
	code := domain.CodeInternal
	message := "internal error"
	var meta map[string]string

	if errors.As(err, &ae) {
		code = ae.Code
		message = ae.Message
		meta = ae.Meta
	}

	render.Status(r, statusFor(code))
	render.JSON(w, r, ErrorBody{Error: ErrorPayload{
		Code:      string(code),
		Message:   message,
		Meta:      meta,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// JSON is a thin wrapper so handlers don't import go-chi/render directly.
func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// Raw writes a pre-serialized JSON body verbatim, used to replay a
// memoized response byte-for-byte (spec.md §4.7) instead of re-encoding
// it and risking a field-order or formatting mismatch with the original.
func Raw(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
