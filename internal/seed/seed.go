// Package seed provisions the demo principals and patient records at startup.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/patient-registry/internal/model"
	"go.uber.org/zap"
)

// DemoPassword is the weak password shared by every seeded principal.
const DemoPassword = "1234"

// Principal is a login account to provision.
type Principal struct {
	Username string
	Password string
	Roles    []model.Role
}

// Principals returns the demo accounts. With adminImpliesUser the admin also
// holds USER, so it can open the listing page.
func Principals(adminImpliesUser bool) []Principal {
	adminRoles := []model.Role{model.RoleAdmin}
	if adminImpliesUser {
		adminRoles = append(adminRoles, model.RoleUser)
	}
	return []Principal{
		{Username: "user1", Password: DemoPassword, Roles: []model.Role{model.RoleUser}},
		{Username: "user2", Password: DemoPassword, Roles: []model.Role{model.RoleUser}},
		{Username: "admin", Password: DemoPassword, Roles: adminRoles},
	}
}

// Patients returns the demo records, born on the given day.
func Patients(today time.Time) []model.Patient {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return []model.Patient{
		{Name: "Yasine", BirthDate: day, Sick: true},
		{Name: "Ahmed", BirthDate: day, Sick: false},
		{Name: "Hanane", BirthDate: day, Sick: true},
	}
}

// PrincipalProvisioner creates principals idempotently.
type PrincipalProvisioner interface {
	EnsurePrincipal(ctx context.Context, username, password string, roles []model.Role) (bool, error)
}

// RecordStore inserts a record unless its name is already taken.
type RecordStore interface {
	SaveIfNameAbsent(ctx context.Context, p *model.Patient) (bool, error)
}

// Seeder provisions principals and records. Running it twice changes nothing.
type Seeder struct {
	auth             PrincipalProvisioner
	records          RecordStore
	adminImpliesUser bool
	log              *zap.Logger
	now              func() time.Time
}

func New(auth PrincipalProvisioner, records RecordStore, adminImpliesUser bool, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{auth: auth, records: records, adminImpliesUser: adminImpliesUser, log: log, now: time.Now}
}

// Run seeds principals first, then records. Seed records bypass field validation.
func (s *Seeder) Run(ctx context.Context) error {
	for _, p := range Principals(s.adminImpliesUser) {
		created, err := s.auth.EnsurePrincipal(ctx, p.Username, p.Password, p.Roles)
		if err != nil {
			return fmt.Errorf("seed principal %s: %w", p.Username, err)
		}
		if created {
			s.log.Info("seeded principal", zap.String("username", p.Username), zap.Any("roles", p.Roles))
		}
	}
	inserted := 0
	for _, p := range Patients(s.now()) {
		created, err := s.records.SaveIfNameAbsent(ctx, &p)
		if err != nil {
			return fmt.Errorf("seed record %s: %w", p.Name, err)
		}
		if created {
			inserted++
		}
	}
	s.log.Info("seed complete", zap.Int("records_inserted", inserted))
	return nil
}
