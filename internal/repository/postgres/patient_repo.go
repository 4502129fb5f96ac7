package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PatientRepo implements PatientRepository using PostgreSQL.
type PatientRepo struct{ db *DB }

// NewPatientRepo constructs a patient repository.
func NewPatientRepo(db *DB) *PatientRepo { return &PatientRepo{db: db} }

// Save inserts a new row when p.ID is zero, otherwise updates the row with that id.
// Updating an id that does not exist returns errs.ErrNotFound; ids are never caller-chosen.
func (r *PatientRepo) Save(ctx context.Context, p *model.Patient) (*model.Patient, error) {
	if p == nil {
		return nil, fmt.Errorf("save patient: %w", errs.ErrInvalidArgument)
	}
	if p.IsNew() {
		const ins = `
INSERT INTO patients (name, birth_date, sick, score)
VALUES ($1, $2, $3, $4)
RETURNING id, name, birth_date, sick, score`
		return scanPatient(r.db.Pool.QueryRow(ctx, ins, p.Name, toDate(p.BirthDate), p.Sick, p.Score))
	}

	const upd = `
UPDATE patients SET name=$2, birth_date=$3, sick=$4, score=$5
WHERE id=$1
RETURNING id, name, birth_date, sick, score`
	out, err := scanPatient(r.db.Pool.QueryRow(ctx, upd, p.ID, p.Name, toDate(p.BirthDate), p.Sick, p.Score))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return out, err
}

// SaveIfNameAbsent inserts p unless a record with the same name already exists.
func (r *PatientRepo) SaveIfNameAbsent(ctx context.Context, p *model.Patient) (bool, error) {
	const q = `
INSERT INTO patients (name, birth_date, sick, score)
SELECT $1::text, $2::date, $3::boolean, $4::integer
WHERE NOT EXISTS (SELECT 1 FROM patients WHERE name = $1)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, p.Name, toDate(p.BirthDate), p.Sick, p.Score).Scan(&p.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}

// DeleteByID removes the row with the given id.
func (r *PatientRepo) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM patients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// FindByID returns a single record by id.
func (r *PatientRepo) FindByID(ctx context.Context, id int64) (*model.Patient, error) {
	const q = `SELECT id, name, birth_date, sick, score FROM patients WHERE id=$1`
	p, err := scanPatient(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return p, err
}

// FindAll returns all records ordered by id.
func (r *PatientRepo) FindAll(ctx context.Context) ([]model.Patient, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, birth_date, sick, score FROM patients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectPatients(rows)
}

// FindByNameContains returns page `page` (zero-based) of records whose name contains keyword
// as a case-sensitive substring. Count and slice are read in one repeatable-read snapshot.
func (r *PatientRepo) FindByNameContains(ctx context.Context, keyword string, page, size int) (model.Page, error) {
	if page < 0 || size < 1 {
		return model.Page{}, fmt.Errorf("page=%d size=%d: %w", page, size, errs.ErrInvalidArgument)
	}

	const cnt = `SELECT count(*) FROM patients WHERE strpos(name, $1) > 0`
	const sel = `
SELECT id, name, birth_date, sick, score
FROM patients
WHERE strpos(name, $1) > 0
ORDER BY id
LIMIT $2 OFFSET $3`

	var (
		total   int64
		content []model.Patient
	)
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := r.db.inTx(ctx, opts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, cnt, keyword).Scan(&total); err != nil {
			return err
		}
		offset := int64(page) * int64(size)
		if offset >= total {
			return nil
		}
		rows, err := tx.Query(ctx, sel, keyword, int64(size), offset)
		if err != nil {
			return err
		}
		content, err = collectPatients(rows)
		return err
	})
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(content, page, size, total), nil
}

// Count returns the number of records.
func (r *PatientRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM patients`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPatient(row pgx.Row) (*model.Patient, error) {
	var (
		p  model.Patient
		bd pgtype.Date
	)
	if err := row.Scan(&p.ID, &p.Name, &bd, &p.Sick, &p.Score); err != nil {
		return nil, err
	}
	if bd.Valid {
		p.BirthDate = bd.Time
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]model.Patient, error) {
	defer rows.Close()
	out := []model.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// toDate maps the zero time to SQL NULL.
func toDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}
