package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/patient-registry/internal/crypto"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/and161185/patient-registry/internal/repository/memory"
	"github.com/and161185/patient-registry/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAuth(t *testing.T) (*service.AuthServiceImpl, *memory.Principals) {
	t.Helper()
	h, err := pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	require.NoError(t, err)
	principals := memory.NewPrincipals()
	auth := service.NewAuthService(principals, memory.NewSessions(), memory.NewRememberTokens(), nil, h,
		service.AuthOptions{SignKey: []byte("k"), SessionTTL: time.Minute})
	return auth, principals
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	auth, principals := newAuth(t)
	records := memory.NewPatients()
	s := New(auth, records, true, zaptest.NewLogger(t))

	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	n, _ := records.Count(ctx)
	require.Equal(t, int64(3), n)

	all, _ := records.FindAll(ctx)
	names := []string{all[0].Name, all[1].Name, all[2].Name}
	require.Equal(t, []string{"Yasine", "Ahmed", "Hanane"}, names)
	require.True(t, all[0].Sick)
	require.False(t, all[1].Sick)

	admin, err := principals.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.ElementsMatch(t, []model.Role{model.RoleAdmin, model.RoleUser}, admin.Roles)

	_, err = auth.Login(ctx, "user2", DemoPassword, "")
	require.NoError(t, err)
}

func TestSeeder_AdminOnlyRole(t *testing.T) {
	ctx := context.Background()
	auth, principals := newAuth(t)
	require.NoError(t, New(auth, memory.NewPatients(), false, nil).Run(ctx))

	admin, err := principals.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, []model.Role{model.RoleAdmin}, admin.Roles)
}

type failingStore struct{}

func (failingStore) SaveIfNameAbsent(context.Context, *model.Patient) (bool, error) {
	return false, errors.New("db down")
}

func TestSeeder_PropagatesStoreError(t *testing.T) {
	auth, _ := newAuth(t)
	err := New(auth, failingStore{}, true, zaptest.NewLogger(t)).Run(context.Background())
	require.ErrorContains(t, err, "seed record Yasine")
}

func TestPatients_DateOnly(t *testing.T) {
	ps := Patients(time.Date(2026, 2, 3, 17, 45, 0, 0, time.FixedZone("X", 3600)))
	require.Len(t, ps, 3)
	require.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), ps[0].BirthDate)
}
