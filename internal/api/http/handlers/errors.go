package handlers

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/internal/service"
	"github.com/spec-kit/leave-service/internal/session"
	apperrors "github.com/spec-kit/leave-service/pkg/util"
)

// mapCoreError translates sentinel errors from the session and request layers
// into transport errors. Authorization failures map to a flat 403 with no
// detail about what the caller was missing.
func mapCoreError(err error) error {
	var locked *session.AccountLockedError
	if errors.As(err, &locked) {
		return apperrors.NewAccountLocked(locked.RemainingMinutes())
	}

	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, session.ErrTokenExpired):
		return apperrors.NewUnauthorized("token expired")
	case errors.Is(err, session.ErrTokenRevoked),
		errors.Is(err, session.ErrMalformedToken),
		errors.Is(err, session.ErrRefreshTokenMismatch):
		return apperrors.NewUnauthorized("invalid token")
	case errors.Is(err, session.ErrUsernameTaken):
		return apperrors.NewConflict("username already taken", nil)
	case errors.Is(err, service.ErrAccessDenied):
		return apperrors.NewForbidden("access denied")
	case errors.Is(err, service.ErrInvalidDateRange):
		return apperrors.NewValidationError("end_date must not precede start_date", nil)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.NewConflict("request already decided", nil)
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("request", nil)
	default:
		return apperrors.MapError(err)
	}
}
