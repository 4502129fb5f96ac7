package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO sessions (id, username, roles, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.Username, rolesToStrings(s.Roles), s.CreatedAt, s.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get loads a session by id. Expiry is the caller's concern.
func (r *SessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	const q = `
SELECT id, username, roles, created_at, expires_at
FROM sessions WHERE id=$1`
	var (
		s     model.Session
		roles []string
	)
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Username, &roles, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	s.Roles = stringsToRoles(roles)
	return &s, nil
}

// Delete removes a session; deleting an unknown id is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RememberTokenRepo implements RememberTokenRepository using PostgreSQL.
type RememberTokenRepo struct{ db *DB }

// NewRememberTokenRepo constructs a remember-me token repository.
func NewRememberTokenRepo(db *DB) *RememberTokenRepo { return &RememberTokenRepo{db: db} }

// Create stores an issued series.
func (r *RememberTokenRepo) Create(ctx context.Context, t *model.RememberToken) error {
	const q = `
INSERT INTO remember_tokens (series, username, issued_at, expires_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, t.Series, t.Username, t.IssuedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get loads a series.
func (r *RememberTokenRepo) Get(ctx context.Context, series uuid.UUID) (*model.RememberToken, error) {
	const q = `
SELECT series, username, issued_at, expires_at
FROM remember_tokens WHERE series=$1`
	var t model.RememberToken
	if err := r.db.Pool.QueryRow(ctx, q, series).Scan(&t.Series, &t.Username, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Delete removes a series; unknown series are ignored.
func (r *RememberTokenRepo) Delete(ctx context.Context, series uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM remember_tokens WHERE series=$1`, series)
	return err
}

// DeleteExpired removes series whose expiry is at or before now.
func (r *RememberTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM remember_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
