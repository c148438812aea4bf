package core

import (
	"errors"
	"fmt"
)

// Outcome taxonomy. Every rejected transition wraps exactly one of these so
// callers can branch with errors.Is.
var (
	ErrValidation            = errors.New("validation error")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrDuplicateEmail        = errors.New("duplicate email")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrSelfDeletionForbidden = errors.New("self deletion forbidden")
	ErrLastMemberProtection  = errors.New("last member protection")
	ErrNotFound              = errors.New("not found")
)

var (
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidBudget    = fmt.Errorf("%w: budget limit must be positive", ErrValidation)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrValidation)
)

// Kind returns a short label for the outcome class of err, or "internal"
// when err does not belong to the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSelfDeletionForbidden):
		return "self_deletion_forbidden"
	case errors.Is(err, ErrLastMemberProtection):
		return "last_member_protection"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
