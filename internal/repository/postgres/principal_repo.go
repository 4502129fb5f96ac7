package postgres

import (
	"context"
	"errors"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/jackc/pgx/v5"
)

// PrincipalRepo implements PrincipalRepository using PostgreSQL.
type PrincipalRepo struct{ db *DB }

// NewPrincipalRepo constructs a principal repository.
func NewPrincipalRepo(db *DB) *PrincipalRepo { return &PrincipalRepo{db: db} }

// CreateIfAbsent inserts a principal row; an existing username is left untouched.
func (r *PrincipalRepo) CreateIfAbsent(ctx context.Context, p *model.Principal) (bool, error) {
	const q = `
INSERT INTO principals (id, username, pwd_hash, salt, roles)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (username) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, p.ID, p.Username, p.PwdHash, p.Salt, rolesToStrings(p.Roles))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetByUsername selects a principal by username.
func (r *PrincipalRepo) GetByUsername(ctx context.Context, username string) (*model.Principal, error) {
	const q = `
SELECT id, username, pwd_hash, salt, roles, created_at
FROM principals WHERE username=$1`
	var (
		p     model.Principal
		roles []string
	)
	err := r.db.Pool.QueryRow(ctx, q, username).Scan(&p.ID, &p.Username, &p.PwdHash, &p.Salt, &roles, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Roles = stringsToRoles(roles)
	return &p, nil
}

func rolesToStrings(rs []model.Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(ss []string) []model.Role {
	out := make([]model.Role, len(ss))
	for i, s := range ss {
		out[i] = model.Role(s)
	}
	return out
}
