// Package migrate applies embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/patient-registry/migrations"
)

// Direction selects which goose command Run executes.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Status Direction = "status"
)

// gooseLogger routes goose output through zap.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }

// Run executes a goose command against the embedded migrations.
func Run(ctx context.Context, dsn string, dir Direction, log *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if log != nil {
		goose.SetLogger(gooseLogger{s: log.Sugar()})
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch dir {
	case Up:
		return goose.UpContext(ctx, db, ".")
	case Down:
		return goose.DownContext(ctx, db, ".")
	case Status:
		return goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migrate direction %q", dir)
	}
}

// UpAll runs all pending migrations from the embedded filesystem.
func UpAll(ctx context.Context, dsn string, log *zap.Logger) error {
	return Run(ctx, dsn, Up, log)
}
