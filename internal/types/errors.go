package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers and services use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidEmail      ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidCadence    ErrorCode = "validation_invalid_frequency"
	ErrCodeValidationInvalidSalutation ErrorCode = "validation_invalid_salutation"
	ErrCodeValidationInvalidBirthday   ErrorCode = "validation_invalid_birthday"
	ErrCodeValidationInvalidAction     ErrorCode = "validation_invalid_action"
	ErrCodeValidationMissingField      ErrorCode = "validation_missing_required_field"

	// Verification (400)
	ErrCodeVerifyCodeInvalid ErrorCode = "verify_code_invalid"

	// Not Found (404)
	ErrCodeNotFoundSubscriber ErrorCode = "not_found_subscriber"

	// Conflict (409)
	ErrCodeConflictSubscribed ErrorCode = "conflict_already_subscribed"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalCache      ErrorCode = "internal_cache_error"
	ErrCodeUpstreamModel      ErrorCode = "upstream_model_unavailable"
	ErrCodeUpstreamImage      ErrorCode = "upstream_image_unavailable"
	ErrCodeUpstreamCalendar   ErrorCode = "upstream_calendar_unavailable"
	ErrCodeUpstreamMail       ErrorCode = "upstream_mail_unavailable"
	ErrCodeUpstreamRateLimit  ErrorCode = "upstream_rate_limited"
	ErrCodeUpstream           ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "verify_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain and handler
// errors are expressed as AppError to enable consistent formatting, HTTP
// status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
