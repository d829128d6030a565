package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/stayflow/stayflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// WrapError normalizes a database error for callers: constraint violations
// become AppErrors, nil stays nil, anything else passes through unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "state_valid"):
		return errors.Validation(map[string]string{
			"state": "must be one of: collecting, confirming_match, checking_in, invoice_offered, done, cancelled, failed",
		})

	case strings.Contains(constraint, "gender_valid"):
		return errors.Validation(map[string]string{
			"gender": "must be one of: male, female, unspecified",
		})

	case strings.Contains(constraint, "confidence_range"):
		return errors.Validation(map[string]string{
			"confidence": "must be between 0 and 1",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "reservation_guest"):
		return "this guest is already registered for the reservation"
	case strings.Contains(constraint, "session"):
		return "an active session already exists for this user"
	default:
		return "a record with these values already exists"
	}
}
