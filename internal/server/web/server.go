// Package web serves the patient registry over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/and161185/patient-registry/internal/convert"
	"github.com/and161185/patient-registry/internal/gate"
	"github.com/and161185/patient-registry/internal/metrics"
	"github.com/and161185/patient-registry/internal/service"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	sessionCookie  = "SESSION"
	rememberCookie = "remember-me"
	csrfCookie     = "_csrf"
	csrfField      = "_csrf"
	csrfContextKey = "csrf"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the HTTP-facing settings.
type Options struct {
	CookieSecure bool
	CSRFEnabled  bool
	PageSize     int
}

// Server wires services into echo handlers.
type Server struct {
	e        *echo.Echo
	auth     service.AuthService
	patients service.PatientService
	gate     *gate.Gate
	metrics  *metrics.Collector
	pinger   Pinger
	forms    *schema.Decoder
	log      *zap.Logger
	opts     Options
}

// New constructs the HTTP server with middleware and routes installed.
func New(
	auth service.AuthService,
	patients service.PatientService,
	g *gate.Gate,
	m *metrics.Collector,
	pinger Pinger,
	log *zap.Logger,
	opts Options,
) (*Server, error) {
	if g == nil {
		g = gate.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PageSize < 1 {
		opts.PageSize = service.DefaultPageSize
	}
	r, err := newRenderer(templatesFS)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = r

	s := &Server{
		e:        e,
		auth:     auth,
		patients: patients,
		gate:     g,
		metrics:  m,
		pinger:   pinger,
		forms:    convert.NewDecoder(),
		log:      log,
		opts:     opts,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(
		middleware.RequestID(),
		s.observe,
		middleware.RecoverWithConfig(middleware.RecoverConfig{
			LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
				log.Error("panic",
					zap.Error(err),
					zap.ByteString("stack", stack),
					zap.String("path", c.Request().URL.Path),
				)
				return err
			},
		}),
		s.identify,
		s.guard,
	)
	if opts.CSRFEnabled {
		e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:" + csrfField,
			CookieName:     csrfCookie,
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   opts.CookieSecure,
			CookieSameSite: http.SameSiteLaxMode,
			ContextKey:     csrfContextKey,
			ErrorHandler: func(err error, c echo.Context) error {
				return echo.NewHTTPError(http.StatusForbidden, "invalid csrf token").SetInternal(err)
			},
		}))
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.e

	css, _ := fs.Sub(staticFS, "static/css")
	e.StaticFS("/css", css)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.GET("/healthz", s.healthz)

	e.GET("/", s.root)
	e.GET("/login", s.loginPage)
	e.POST("/login", s.login)
	e.POST("/logout", s.logout)

	e.GET("/user/index", s.index)

	admin := e.Group("/admin")
	admin.GET("/patients", s.allPatients)
	admin.GET("/formPatients", s.createForm)
	admin.GET("/editPatients", s.editForm)
	admin.POST("/save", s.save)
	admin.GET("/delete", s.delete)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func (s *Server) healthz(c echo.Context) error {
	if s.pinger == nil {
		return c.String(http.StatusOK, "ok")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		return c.String(http.StatusServiceUnavailable, "unavailable")
	}
	return c.String(http.StatusOK, "ok")
}
