package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")

	// Check-in flow errors. All of these are session-scoped and recoverable
	// except ErrExternalActionFailed after retry exhaustion.
	ErrExtractionFailed     = errors.New("identity extraction failed")
	ErrUnmappedCountry      = errors.New("country not mapped")
	ErrNoMatchFound         = errors.New("no matching reservation")
	ErrAmbiguousMatch       = errors.New("ambiguous reservation match")
	ErrExternalActionFailed = errors.New("external action failed")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Check-in flow constructors

// ExtractionFailed is returned when no usable fields could be parsed from
// an ID photo. The user is prompted to resend a sharper photo.
func ExtractionFailed(err error) *AppError {
	return &AppError{
		Err:        errors.Join(ErrExtractionFailed, err),
		Code:       "EXTRACTION_FAILED",
		Message:    "could not read guest data from the photo",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// UnmappedCountry is returned when an extracted nationality has no PMS
// country ID. Surfaced for manual resolution, never guessed.
func UnmappedCountry(code string) *AppError {
	return &AppError{
		Err:        ErrUnmappedCountry,
		Code:       "UNMAPPED_COUNTRY",
		Message:    fmt.Sprintf("no PMS country mapping for %q", code),
		StatusCode: http.StatusUnprocessableEntity,
		Details:    map[string]string{"country": code},
	}
}

// NoMatchFound is returned when no candidate scored above the similarity floor.
func NoMatchFound() *AppError {
	return &AppError{
		Err:        ErrNoMatchFound,
		Code:       "NO_MATCH_FOUND",
		Message:    "no reservation matched the extracted guest",
		StatusCode: http.StatusNotFound,
	}
}

// AmbiguousMatch is returned when two or more candidates tie at the top rank.
// The user must choose; the system never auto-picks between equals.
func AmbiguousMatch(count int) *AppError {
	return &AppError{
		Err:        ErrAmbiguousMatch,
		Code:       "AMBIGUOUS_MATCH",
		Message:    fmt.Sprintf("%d reservations matched equally well", count),
		StatusCode: http.StatusConflict,
	}
}

// ExternalActionFailed wraps a failed PMS or automation call after retries
// were exhausted.
func ExternalActionFailed(action string, err error) *AppError {
	return &AppError{
		Err:        errors.Join(ErrExternalActionFailed, err),
		Code:       "EXTERNAL_ACTION_FAILED",
		Message:    fmt.Sprintf("%s failed after retries", action),
		StatusCode: http.StatusBadGateway,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
