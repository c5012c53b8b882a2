package dto

import (
	"net/http"
	"strings"
)

// General error codes raised by the interface layer itself.
const (
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeDatabase is used when persistence fails with a non-domain error
	ErrCodeDatabase = "DATABASE_ERROR"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes.
//
// The split between 409 and 422 is deliberate: 409 means the write lost a
// race or arrived against a stale version and a retry may succeed; 422 means
// the request is well formed but the business rules reject it and a retry
// with the same payload will fail again.
var ErrorCodeHTTPStatus = map[string]int{
	// Malformed or invalid input -> 400 Bad Request
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	"INVALID_INPUT":    http.StatusBadRequest,
	"INVALID_AMOUNT":   http.StatusBadRequest,
	"INVALID_DATE":     http.StatusBadRequest,

	// Missing resources -> 404 Not Found
	ErrCodeNotFound:           http.StatusNotFound,
	"ALLOCATION_NOT_FOUND":    http.StatusNotFound,
	"CAPITAL_CALL_NOT_FOUND":  http.StatusNotFound,
	"DEAL_NOT_FOUND":          http.StatusNotFound,
	"FUND_NOT_FOUND":          http.StatusNotFound,
	"CLOSING_EVENT_NOT_FOUND": http.StatusNotFound,
	"MEETING_NOT_FOUND":       http.StatusNotFound,

	// Write conflicts -> 409 Conflict
	"ALREADY_EXISTS":        http.StatusConflict,
	"ALLOCATION_EXISTS":     http.StatusConflict,
	"CONCURRENCY_CONFLICT":  http.StatusConflict,
	"OPTIMISTIC_LOCK_ERROR": http.StatusConflict,
	"INVARIANT_VIOLATION":   http.StatusConflict,

	// Business rule rejections -> 422 Unprocessable Entity
	"INVALID_STATE":        http.StatusUnprocessableEntity,
	"OVER_CALL_ATTEMPT":    http.StatusUnprocessableEntity,
	"OVERPAYMENT_REJECTED": http.StatusUnprocessableEntity,
	"ALLOCATION_DEFAULTED": http.StatusUnprocessableEntity,
	"DEAL_NOT_INVESTABLE":  http.StatusUnprocessableEntity,
	"FUND_NOT_OPEN":        http.StatusUnprocessableEntity,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Infrastructure failures -> 500 Internal Server Error
	ErrCodeDatabase: http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Codes missing from the explicit map fall back by naming convention:
// *_NOT_FOUND is 404 and INVALID_* is 400, everything else is 500 so
// an unmapped code never leaks a success status.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasSuffix(code, "_NOT_FOUND") {
		return http.StatusNotFound
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
