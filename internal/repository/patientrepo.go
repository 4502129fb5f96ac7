package repository

import (
	"context"

	"github.com/and161185/patient-registry/internal/model"
)

// PatientRepository provides persistence for patient records.
type PatientRepository interface {
	// Save inserts when p.ID is zero and updates in place otherwise; returns the stored row.
	Save(ctx context.Context, p *model.Patient) (*model.Patient, error)
	// SaveIfNameAbsent inserts p only when no record with the same name exists.
	SaveIfNameAbsent(ctx context.Context, p *model.Patient) (bool, error)
	// DeleteByID removes a record; ErrNotFound when nothing was deleted.
	DeleteByID(ctx context.Context, id int64) error
	// FindByID loads a single record.
	FindByID(ctx context.Context, id int64) (*model.Patient, error)
	// FindAll returns every record in id order.
	FindAll(ctx context.Context) ([]model.Patient, error)
	// FindByNameContains returns one page of records whose name contains keyword.
	FindByNameContains(ctx context.Context, keyword string, page, size int) (model.Page, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}
