// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"errors"

	"github.com/gapgens/gapgens/internal/platform/apperr"
)

var (
	// ErrInvalidArgument is returned when a required identifier is missing. Never retried.
	ErrInvalidArgument = errors.New("session: invalid argument")

	// ErrStoreUnavailable wraps transient persistence failures, timeouts included.
	// Callers may retry with backoff.
	ErrStoreUnavailable = errors.New("session: store unavailable")

	// ErrConflict is returned by stores on a token collision or a duplicate
	// active (user, device) row.
	ErrConflict = errors.New("session: conflict")

	// ErrSessionNotFound is returned when no active session matches a token.
	ErrSessionNotFound = errors.New("session: not found")
)

// ArgumentError names the field that failed validation.
type ArgumentError struct {
	Field string
}

func (e *ArgumentError) Error() string { return "session: " + e.Field + " is required" }

// Is makes ArgumentError match [ErrInvalidArgument].
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// ToAppError translates a session error into the HTTP-facing taxonomy.
// Store-specific error shapes never pass through.
func ToAppError(err error) *apperr.AppError {
	if appError := apperr.As(err); appError != nil {
		return appError
	}

	var argumentError *ArgumentError
	switch {
	case errors.As(err, &argumentError):
		return apperr.ValidationError("Validation failed", apperr.FieldError{
			Field:   argumentError.Field,
			Message: "This field is required",
		})
	case errors.Is(err, ErrInvalidArgument):
		return apperr.ValidationError("Validation failed")
	case errors.Is(err, ErrSessionNotFound):
		return apperr.NotFound("Session")
	case errors.Is(err, ErrConflict):
		conflict := apperr.Conflict("Session could not be created, please retry")
		conflict.Cause = err
		return conflict
	default:
		return apperr.StoreUnavailable(err)
	}
}
