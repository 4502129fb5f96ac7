package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var policy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 10 * time.Minute}

func newLimiter(t *testing.T, now time.Time) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	l := NewPG(mock, policy)
	l.now = func() time.Time { return now }
	return l, mock
}

func TestAllow(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	k := Key{Username: "u", Client: HashClient("10.0.0.1:5555")}
	const q = `SELECT blocked_until FROM auth_limiter WHERE username=\$1 AND ip_hash=\$2`

	t.Run("no row allows", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(q).WithArgs("u", k.Client).WillReturnError(pgx.ErrNoRows)

		ok, dur, err := l.Allow(context.Background(), k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Zero(t, dur)
	})

	t.Run("blocked until future", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(q).WithArgs("u", k.Client).
			WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(3 * time.Minute)))

		ok, dur, err := l.Allow(context.Background(), k)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, 3*time.Minute, dur)
	})

	t.Run("block in the past allows", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(q).WithArgs("u", k.Client).
			WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Second)))

		ok, _, err := l.Allow(context.Background(), k)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("db error propagates", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(q).WithArgs("u", k.Client).WillReturnError(errors.New("db boom"))

		ok, _, err := l.Allow(context.Background(), k)
		require.Error(t, err)
		require.False(t, ok)
	})
}

func TestSuccess(t *testing.T) {
	l, mock := newLimiter(t, time.Now())
	defer mock.Close()
	k := Key{Username: "u", Client: []byte("h")}

	mock.ExpectExec(`INSERT INTO auth_limiter`).WithArgs("u", []byte("h")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), k))

	mock.ExpectExec(`INSERT INTO auth_limiter`).WithArgs("u", []byte("h")).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), k))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	k := Key{Username: "u", Client: []byte("h")}
	const ret = `RETURNING fail_count`

	t.Run("below threshold", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(ret).WithArgs("u", []byte("h"), policy.Window).
			WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

		blocked, dur, err := l.Failure(context.Background(), k)
		require.NoError(t, err)
		require.False(t, blocked)
		require.Zero(t, dur)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocks at threshold", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(ret).WithArgs("u", []byte("h"), policy.Window).
			WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(5))
		mock.ExpectExec(`UPDATE auth_limiter SET blocked_until=\$3 WHERE username=\$1 AND ip_hash=\$2`).
			WithArgs("u", []byte("h"), now.Add(policy.BlockFor)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		blocked, dur, err := l.Failure(context.Background(), k)
		require.NoError(t, err)
		require.True(t, blocked)
		require.Equal(t, policy.BlockFor, dur)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returning error", func(t *testing.T) {
		l, mock := newLimiter(t, now)
		defer mock.Close()
		mock.ExpectQuery(ret).WithArgs("u", []byte("h"), policy.Window).
			WillReturnError(errors.New("query error"))

		_, _, err := l.Failure(context.Background(), k)
		require.Error(t, err)
	})
}

func TestHashClient_IgnoresPort(t *testing.T) {
	a := HashClient("1.2.3.4:123")
	b := HashClient("1.2.3.4:456")
	c := HashClient("5.6.7.8:123")
	d := HashClient("1.2.3.4")
	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.Equal(t, a, d)
	require.NotEqual(t, a, c)
}

func TestNoop(t *testing.T) {
	var l Limiter = Noop{}
	ok, _, err := l.Allow(context.Background(), Key{})
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), Key{})
	require.NoError(t, err)
	require.False(t, blocked)
	require.False(t, Policy{}.Enabled())
	require.True(t, policy.Enabled())
}
