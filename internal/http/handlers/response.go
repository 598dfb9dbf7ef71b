// Package handlers provides HTTP handler implementations for the worker
// protocol and the operator API.
//
// This file defines the standard response utilities used across all endpoints:
// the error envelope, the error-to-status mapping, and small success helpers.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting; 5xx responses are
//     logged with the request-scoped logger.
//   - `failErr()` maps service errors with errors.Is so handlers never pick
//     status codes for domain failures themselves.
//
// Example error response:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "invalid_transition",
//	  "message": "order 42: no AI_READY items"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/http/middleware"
	"github.com/tbourn/autodesign-coordinator/internal/jobs"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"order not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the envelope. Unknown errors are
// reported as 500 without leaking their text.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		msg = "internal error"
	}
	fail(c, status, code, msg)
}

// classify maps the service taxonomy to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, ErrCodeInvalidTransition
	case errors.Is(err, services.ErrUpstreamUnavailable):
		return http.StatusBadGateway, ErrCodeUpstreamUnavailable
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnknownSheet),
		errors.Is(err, jobs.ErrMissingJobID),
		errors.Is(err, jobs.ErrMissingOrderID),
		errors.Is(err, jobs.ErrBadOutcome),
		errors.Is(err, jobs.ErrBadType),
		errors.Is(err, jobs.ErrDetailTooLong):
		return http.StatusBadRequest, ErrCodeBadRequest
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
