package service

import (
	"context"
	"fmt"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/and161185/patient-registry/internal/repository"
)

// DefaultPageSize is the listing page size when the caller sends none.
const DefaultPageSize = 4

// ListQuery selects one page of the keyword-filtered listing.
type ListQuery struct {
	Keyword string
	Page    int // zero-based
	Size    int
}

// PatientService defines use-cases over patient records.
type PatientService interface {
	// List returns one page of records whose name contains Keyword.
	List(ctx context.Context, q ListQuery) (model.Page, error)
	// Get returns a record or errs.ErrNotFound.
	Get(ctx context.Context, id int64) (*model.Patient, error)
	// All returns every record ordered by id.
	All(ctx context.Context) ([]model.Patient, error)
	// Save inserts or updates a record; requires ADMIN.
	Save(ctx context.Context, actor *model.Identity, p *model.Patient) (*model.Patient, error)
	// Delete removes a record; requires ADMIN.
	Delete(ctx context.Context, actor *model.Identity, id int64) error
}

type PatientServiceImpl struct {
	repo      repository.PatientRepository
	validator *PatientValidator
}

// NewPatientService wires the patient use-cases.
func NewPatientService(repo repository.PatientRepository, v *PatientValidator) *PatientServiceImpl {
	if v == nil {
		v = NewPatientValidator(ValidationRelaxed)
	}
	return &PatientServiceImpl{repo: repo, validator: v}
}

func (s *PatientServiceImpl) List(ctx context.Context, q ListQuery) (model.Page, error) {
	if q.Page < 0 || q.Size < 1 {
		return model.Page{}, fmt.Errorf("page=%d size=%d: %w", q.Page, q.Size, errs.ErrInvalidArgument)
	}
	return s.repo.FindByNameContains(ctx, q.Keyword, q.Page, q.Size)
}

func (s *PatientServiceImpl) Get(ctx context.Context, id int64) (*model.Patient, error) {
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *PatientServiceImpl) All(ctx context.Context) ([]model.Patient, error) {
	return s.repo.FindAll(ctx)
}

// Save checks the role before validating the record.
func (s *PatientServiceImpl) Save(ctx context.Context, actor *model.Identity, p *model.Patient) (*model.Patient, error) {
	if err := Require(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if p == nil || p.ID < 0 {
		return nil, fmt.Errorf("save patient: %w", errs.ErrInvalidArgument)
	}
	if err := s.validator.Validate(p); err != nil {
		return nil, err
	}
	return s.repo.Save(ctx, p)
}

func (s *PatientServiceImpl) Delete(ctx context.Context, actor *model.Identity, id int64) error {
	if err := Require(actor, model.RoleAdmin); err != nil {
		return err
	}
	if id <= 0 {
		return errs.ErrNotFound
	}
	return s.repo.DeleteByID(ctx, id)
}
