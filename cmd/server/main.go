// Command patient-registry serves the patient registry web application.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/patient-registry/internal/config"
	pkgcrypto "github.com/and161185/patient-registry/internal/crypto"
	"github.com/and161185/patient-registry/internal/gate"
	"github.com/and161185/patient-registry/internal/limiter"
	"github.com/and161185/patient-registry/internal/metrics"
	"github.com/and161185/patient-registry/internal/migrate"
	"github.com/and161185/patient-registry/internal/repository"
	"github.com/and161185/patient-registry/internal/repository/memory"
	"github.com/and161185/patient-registry/internal/repository/postgres"
	"github.com/and161185/patient-registry/internal/seed"
	grpcserver "github.com/and161185/patient-registry/internal/server/grpc"
	"github.com/and161185/patient-registry/internal/server/web"
	"github.com/and161185/patient-registry/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:          "patient-registry",
		Short:        "Patient registry web application",
		Version:      version + " (" + buildDate + ")",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("database-url", "", "PostgreSQL DSN (env DATABASE_URL)")
	_ = v.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))

	root.AddCommand(serveCmd(v))
	root.AddCommand(migrateCmd(v))
	return root
}

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// Context with OS signals
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address (env ADDR)")
	cmd.Flags().Bool("in-memory", false, "keep all state in process memory; no database (env IN_MEMORY)")
	cmd.Flags().String("grpc-health-addr", "", "gRPC health probe address, empty disables (env GRPC_HEALTH_ADDR)")
	_ = v.BindPFlag("ADDR", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("IN_MEMORY", cmd.Flags().Lookup("in-memory"))
	_ = v.BindPFlag("GRPC_HEALTH_ADDR", cmd.Flags().Lookup("grpc-health-addr"))
	return cmd
}

func migrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migrate.Up), string(migrate.Down), string(migrate.Status)},
		RunE: func(cmd *cobra.Command, args []string) error {
			v.AutomaticEnv()
			dsn := v.GetString("DATABASE_URL")
			if dsn == "" {
				return errors.New("DATABASE_URL is required")
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return migrate.Run(cmd.Context(), dsn, migrate.Direction(args[0]), logger)
		},
	}
	return cmd
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type stores struct {
	principals repository.PrincipalRepository
	sessions   repository.SessionRepository
	tokens     repository.RememberTokenRepository
	records    repository.PatientRepository
	lim        limiter.Limiter
	pinger     web.Pinger
	close      func()
}

// openStores runs migrations and opens PostgreSQL, or builds in-memory stores.
func openStores(ctx context.Context, cfg *config.Config, m *metrics.Collector, logger *zap.Logger) (*stores, error) {
	policy := limiter.Policy{Window: cfg.LoginWindow, MaxFails: cfg.LoginMaxFails, BlockFor: cfg.LoginBlockFor}

	if cfg.InMemory {
		logger.Warn("running with in-memory storage; all data is lost on exit")
		var lim limiter.Limiter = limiter.Noop{}
		if policy.Enabled() {
			lim = limiter.NewMemory(policy)
		}
		return &stores{
			principals: memory.NewPrincipals(),
			sessions:   memory.NewSessions(),
			tokens:     memory.NewRememberTokens(),
			records:    memory.NewPatients(),
			lim:        lim,
			close:      func() {},
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := migrate.UpAll(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
	}
	db, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	m.RegisterPool(db.Stats)

	var lim limiter.Limiter = limiter.Noop{}
	if policy.Enabled() {
		lim = limiter.NewPG(db.Pool, policy)
	}
	return &stores{
		principals: postgres.NewPrincipalRepo(db),
		sessions:   postgres.NewSessionRepo(db),
		tokens:     postgres.NewRememberTokenRepo(db),
		records:    postgres.NewPatientRepo(db),
		lim:        lim,
		pinger:     db,
		close:      db.Close,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	m := metrics.New()
	st, err := openStores(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer st.close()

	hasher, err := pkgcrypto.NewHasher(pkgcrypto.DefaultParams)
	if err != nil {
		return err
	}
	mode, err := service.ParseValidationMode(cfg.ValidationMode)
	if err != nil {
		return err
	}

	// Services
	authSvc := service.NewAuthService(st.principals, st.sessions, st.tokens, st.lim, hasher,
		service.AuthOptions{SignKey: []byte(cfg.RememberMeKey), SessionTTL: cfg.SessionTTL})
	patientSvc := service.NewPatientService(st.records, service.NewPatientValidator(mode))

	if cfg.SeedEnabled {
		if err := seed.New(authSvc, st.records, cfg.SeedAdminImpliesUser, logger).Run(ctx); err != nil {
			return err
		}
	}
	go authSvc.RunJanitor(ctx, cfg.JanitorInterval, logger)

	srv, err := web.New(authSvc, patientSvc, gate.Default(), m, st.pinger, logger, web.Options{
		CookieSecure: cfg.CookieSecure,
		CSRFEnabled:  cfg.CSRFEnabled,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)

	// Health probe (optional)
	var probe *grpcserver.HealthProbe
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		probe = grpcserver.NewHealthProbe(st.pinger, logger, cfg.IsDev() || cfg.GRPCReflection)
		go probe.Watch(ctx, 10*time.Second)
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.GRPCHealthAddr))
			errCh <- probe.Serve(lis)
		}()
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.Start(cfg.Addr)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	// graceful shutdown
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if probe != nil {
		probe.Stop(shutdownTimeout)
	}
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
