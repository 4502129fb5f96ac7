package web

import (
	"errors"
	"net/http"

	"github.com/and161185/patient-registry/internal/convert"
	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/and161185/patient-registry/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type loginView struct {
	Error  bool
	Locked bool
	Logout bool
	CSRF   string
}

type indexView struct {
	Page     model.Page
	Keyword  string
	Identity *model.Identity
	IsAdmin  bool
	CSRF     string
}

type formView struct {
	Form     convert.PatientForm
	Errors   map[string]string
	Identity *model.Identity
	CSRF     string
}

func (s *Server) root(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/user/index")
}

func (s *Server) loginPage(c echo.Context) error {
	q := c.QueryParams()
	return c.Render(http.StatusOK, "login.html", loginView{
		Error:  q.Has("error"),
		Locked: q.Has("locked"),
		Logout: q.Has("logout"),
		CSRF:   csrfToken(c),
	})
}

func (s *Server) login(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}
	f, err := convert.DecodeLoginForm(s.forms, values)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}

	ctx := c.Request().Context()
	sess, err := s.auth.Login(ctx, f.Username, f.Password, c.Request().RemoteAddr)
	switch {
	case errors.Is(err, errs.ErrRateLimited):
		s.metrics.RecordAuthAttempt("password", "locked")
		return c.Redirect(http.StatusFound, "/login?error&locked")
	case errors.Is(err, errs.ErrUnauthorized):
		s.metrics.RecordAuthAttempt("password", "failure")
		return c.Redirect(http.StatusFound, "/login?error")
	case err != nil:
		return err
	}
	s.metrics.RecordAuthAttempt("password", "success")

	// A fresh session id on every login; the previous one is dropped.
	if old, cerr := c.Cookie(sessionCookie); cerr == nil && old.Value != "" && old.Value != sess.ID {
		_ = s.auth.Logout(ctx, old.Value, "")
	}
	s.setSessionCookie(c, sess.ID)

	if f.RememberMe {
		tok, exp, err := s.auth.IssueRememberMe(ctx, sess.Username)
		if err != nil {
			s.log.Warn("issue remember-me", zap.Error(err))
		} else {
			s.setRememberCookie(c, tok, exp)
		}
	}
	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c echo.Context) error {
	var sid, remember string
	if ck, err := c.Cookie(sessionCookie); err == nil {
		sid = ck.Value
	}
	if ck, err := c.Cookie(rememberCookie); err == nil {
		remember = ck.Value
	}
	if err := s.auth.Logout(c.Request().Context(), sid, remember); err != nil {
		return err
	}
	s.clearCookie(c, sessionCookie)
	s.clearCookie(c, rememberCookie)
	return c.Redirect(http.StatusFound, "/login?logout")
}

func (s *Server) index(c echo.Context) error {
	q := service.ListQuery{Size: s.opts.PageSize}
	if err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("size", &q.Size).
		String("keyword", &q.Keyword).
		BindError(); err != nil {
		return err
	}

	pg, err := s.patients.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	id := identityOf(c)
	return c.Render(http.StatusOK, "index.html", indexView{
		Page:     pg,
		Keyword:  q.Keyword,
		Identity: id,
		IsAdmin:  id.HasRole(model.RoleAdmin),
		CSRF:     csrfToken(c),
	})
}

func (s *Server) allPatients(c echo.Context) error {
	all, err := s.patients.All(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.ToPatientsJSON(all))
}

func (s *Server) createForm(c echo.Context) error {
	return s.renderForm(c, http.StatusOK, convert.PatientForm{}, nil)
}

func (s *Server) editForm(c echo.Context) error {
	var (
		id      int64
		page    int
		keyword string
	)
	if err := echo.QueryParamsBinder(c).
		MustInt64("id", &id).
		Int("page", &page).
		String("keyword", &keyword).
		BindError(); err != nil {
		return err
	}
	p, err := s.patients.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.renderForm(c, http.StatusOK, convert.FromPatient(*p, page, keyword), nil)
}

func (s *Server) save(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}
	f, bad, err := convert.DecodePatientForm(s.forms, values)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}
	if len(bad) > 0 {
		return s.renderForm(c, http.StatusOK, f, bad)
	}

	p := f.ToPatient()
	_, err = s.patients.Save(c.Request().Context(), identityOf(c), &p)
	s.metrics.RecordWrite("save", err)
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return s.renderForm(c, http.StatusOK, f, ve.Fields)
	case err != nil:
		return err
	}
	return c.Redirect(http.StatusFound, convert.ListURL(f.Page, f.Keyword))
}

func (s *Server) delete(c echo.Context) error {
	var (
		id      int64
		page    int
		keyword string
	)
	if err := echo.QueryParamsBinder(c).
		MustInt64("id", &id).
		Int("page", &page).
		String("keyword", &keyword).
		BindError(); err != nil {
		return err
	}
	err := s.patients.Delete(c.Request().Context(), identityOf(c), id)
	s.metrics.RecordWrite("delete", err)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, convert.ListURL(page, keyword))
}

func (s *Server) renderForm(c echo.Context, code int, f convert.PatientForm, fieldErrs map[string]string) error {
	return c.Render(code, "form.html", formView{
		Form:     f,
		Errors:   fieldErrs,
		Identity: identityOf(c),
		CSRF:     csrfToken(c),
	})
}
