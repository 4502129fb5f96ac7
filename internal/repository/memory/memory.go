// Package memory provides process-local repositories for development runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Patients is an in-memory PatientRepository. Ids are assigned from a counter and never reused.
type Patients struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.Patient
}

func NewPatients() *Patients { return &Patients{rows: map[int64]model.Patient{}} }

func (r *Patients) Save(_ context.Context, p *model.Patient) (*model.Patient, error) {
	if p == nil {
		return nil, fmt.Errorf("save patient: %w", errs.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.IsNew() {
		r.nextID++
		cp.ID = r.nextID
	} else if _, ok := r.rows[cp.ID]; !ok {
		return nil, errs.ErrNotFound
	}
	r.rows[cp.ID] = cp
	return &cp, nil
}

func (r *Patients) SaveIfNameAbsent(ctx context.Context, p *model.Patient) (bool, error) {
	r.mu.RLock()
	for _, row := range r.rows {
		if row.Name == p.Name {
			r.mu.RUnlock()
			return false, nil
		}
	}
	r.mu.RUnlock()
	saved, err := r.Save(ctx, p)
	if err != nil {
		return false, err
	}
	p.ID = saved.ID
	return true, nil
}

func (r *Patients) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *Patients) FindByID(_ context.Context, id int64) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (r *Patients) FindAll(_ context.Context) ([]model.Patient, error) {
	return r.filter(""), nil
}

func (r *Patients) FindByNameContains(_ context.Context, keyword string, page, size int) (model.Page, error) {
	if page < 0 || size < 1 {
		return model.Page{}, fmt.Errorf("page=%d size=%d: %w", page, size, errs.ErrInvalidArgument)
	}
	all := r.filter(keyword)
	total := int64(len(all))
	from := int64(page) * int64(size)
	var content []model.Patient
	if from < total {
		to := min(from+int64(size), total)
		content = all[from:to]
	}
	return model.NewPage(content, page, size, total), nil
}

func (r *Patients) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.rows)), nil
}

// filter returns matching rows ordered by id.
func (r *Patients) filter(keyword string) []model.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Patient{}
	for _, p := range r.rows {
		if strings.Contains(p.Name, keyword) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Patient) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Principals is an in-memory PrincipalRepository.
type Principals struct {
	mu     sync.RWMutex
	byName map[string]model.Principal
}

func NewPrincipals() *Principals { return &Principals{byName: map[string]model.Principal{}} }

func (r *Principals) CreateIfAbsent(_ context.Context, p *model.Principal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[p.Username]; ok {
		return false, nil
	}
	cp := *p
	cp.Roles = slices.Clone(p.Roles)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.byName[p.Username] = cp
	return true, nil
}

func (r *Principals) GetByUsername(_ context.Context, username string) (*model.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

// Sessions is an in-memory SessionRepository.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]model.Session
}

func NewSessions() *Sessions { return &Sessions{byID: map[string]model.Session{}} }

func (r *Sessions) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; ok {
		return errs.ErrAlreadyExists
	}
	r.byID[s.ID] = *s
	return nil
}

func (r *Sessions) Get(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &s, nil
}

func (r *Sessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if !s.ExpiresAt.After(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// RememberTokens is an in-memory RememberTokenRepository.
type RememberTokens struct {
	mu       sync.Mutex
	bySeries map[uuid.UUID]model.RememberToken
}

func NewRememberTokens() *RememberTokens {
	return &RememberTokens{bySeries: map[uuid.UUID]model.RememberToken{}}
}

func (r *RememberTokens) Create(_ context.Context, t *model.RememberToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySeries[t.Series]; ok {
		return errs.ErrAlreadyExists
	}
	r.bySeries[t.Series] = *t
	return nil
}

func (r *RememberTokens) Get(_ context.Context, series uuid.UUID) (*model.RememberToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.bySeries[series]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

func (r *RememberTokens) Delete(_ context.Context, series uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySeries, series)
	return nil
}

func (r *RememberTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.bySeries {
		if !t.ExpiresAt.After(now) {
			delete(r.bySeries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored series.
func (r *RememberTokens) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySeries)
}
