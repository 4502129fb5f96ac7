package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/gate"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// observe logs and measures every request. No payloads, only metadata.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		dur := time.Since(start)

		req := c.Request()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().Status
		s.metrics.RecordHTTPRequest(req.Method, route, status, dur)
		s.log.Info("http",
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("dur", dur),
			zap.String("remote", req.RemoteAddr),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// identify resolves the caller from the session cookie, falling back to the
// remember-me cookie, which opens a fresh session.
func (s *Server) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if ck, err := c.Cookie(sessionCookie); err == nil && ck.Value != "" {
			id, err := s.auth.Identify(ctx, ck.Value)
			switch {
			case err == nil:
				setIdentity(c, &id)
				return next(c)
			case !errors.Is(err, errs.ErrUnauthorized):
				return err
			}
			s.clearCookie(c, sessionCookie)
		}

		if ck, err := c.Cookie(rememberCookie); err == nil && ck.Value != "" {
			sess, err := s.auth.LoginWithRememberMe(ctx, ck.Value)
			switch {
			case err == nil:
				s.metrics.RecordAuthAttempt("remember-me", "success")
				s.setSessionCookie(c, sess.ID)
				id := model.IdentityFromSession(sess)
				setIdentity(c, &id)
			case errors.Is(err, errs.ErrUnauthorized):
				s.metrics.RecordAuthAttempt("remember-me", "failure")
				s.clearCookie(c, rememberCookie)
			default:
				return err
			}
		}
		return next(c)
	}
}

// guard applies the access gate to the request path.
func (s *Server) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		d := s.gate.Evaluate(c.Request().URL.Path, identityOf(c))
		s.metrics.RecordGateDecision(d.String())
		switch d {
		case gate.Login:
			return c.Redirect(http.StatusFound, "/login")
		case gate.Forbidden:
			return errs.ErrForbidden
		default:
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, id *model.Identity) {
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

func identityOf(c echo.Context) *model.Identity {
	return IdentityFromCtx(c.Request().Context())
}

func (s *Server) setSessionCookie(c echo.Context, id string) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) setRememberCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     rememberCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(model.RememberMeTTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func csrfToken(c echo.Context) string {
	tok, _ := c.Get(csrfContextKey).(string)
	return tok
}
