package service

import (
	"fmt"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
)

// AccessDeniedError reports that actor lacks Role. It matches errs.ErrForbidden.
type AccessDeniedError struct {
	Username string
	Role     model.Role
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: role %s required for %q", errs.ErrForbidden, e.Role, e.Username)
}

func (e *AccessDeniedError) Unwrap() error { return errs.ErrForbidden }

// Require fails unless actor holds role. A nil actor is unauthenticated.
func Require(actor *model.Identity, role model.Role) error {
	if actor == nil {
		return errs.ErrUnauthorized
	}
	if !actor.HasRole(role) {
		return &AccessDeniedError{Username: actor.Username, Role: role}
	}
	return nil
}
