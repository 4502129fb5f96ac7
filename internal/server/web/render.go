package web

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/and161185/patient-registry/internal/convert"
	"github.com/and161185/patient-registry/internal/errs"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type renderer struct {
	t *template.Template
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"date":    convert.FormatDate,
		"listURL": convert.ListURL,
		"add":     func(a, b int) int { return a + b },
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &renderer{t: t}, nil
}

func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

type errorView struct {
	Status  int
	Title   string
	Message string
}

// handleError maps service sentinels to HTTP responses.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Something went wrong."

	var (
		he *echo.HTTPError
		be *echo.BindingError
	)
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		_ = c.Redirect(http.StatusFound, "/login")
		return
	case errors.As(err, &be):
		code, msg = http.StatusBadRequest, fmt.Sprintf("Parameter %q is invalid.", be.Field)
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.Is(err, errs.ErrNotFound):
		code, msg = http.StatusNotFound, "No such record."
	case errors.Is(err, errs.ErrForbidden):
		code, msg = http.StatusForbidden, "You are not allowed to access this page."
	case errors.Is(err, errs.ErrInvalidArgument):
		code, msg = http.StatusBadRequest, "The request parameters are invalid."
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.Error(err),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	view := errorView{Status: code, Title: http.StatusText(code), Message: msg}
	if rerr := c.Render(code, "error.html", view); rerr != nil {
		_ = c.String(code, msg)
	}
}
