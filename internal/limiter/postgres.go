package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is a PostgreSQL-backed limiter with sliding window and lockout.
type PG struct {
	q      Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, p Policy) *PG {
	return &PG{q: q, policy: p, now: time.Now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, k Key) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE username=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, k.Username, k.Client).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for the key.
func (l *PG) Success(ctx context.Context, k Key) error {
	const q = `
INSERT INTO auth_limiter (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', now())
ON CONFLICT (username, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.q.Exec(ctx, q, k.Username, k.Client)
	return err
}

// Failure records a failed attempt and blocks the key once MaxFails is reached inside Window.
func (l *PG) Failure(ctx context.Context, k Key) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', now())
ON CONFLICT (username, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - auth_limiter.updated_at > $3::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, k.Username, k.Client, l.policy.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.policy.MaxFails {
		return false, 0, nil
	}
	const upd = `UPDATE auth_limiter SET blocked_until=$3 WHERE username=$1 AND ip_hash=$2`
	if _, err := l.q.Exec(ctx, upd, k.Username, k.Client, l.now().Add(l.policy.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
