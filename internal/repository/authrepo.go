// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/patient-registry/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PrincipalRepository provides access to login principals.
type PrincipalRepository interface {
	// CreateIfAbsent inserts a principal unless the username is taken; reports whether it inserted.
	CreateIfAbsent(ctx context.Context, p *model.Principal) (bool, error)
	// GetByUsername loads a principal by username.
	GetByUsername(ctx context.Context, username string) (*model.Principal, error)
}

// SessionRepository stores login sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RememberTokenRepository stores issued remember-me series.
type RememberTokenRepository interface {
	Create(ctx context.Context, t *model.RememberToken) error
	Get(ctx context.Context, series uuid.UUID) (*model.RememberToken, error)
	Delete(ctx context.Context, series uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
