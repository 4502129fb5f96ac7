package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/go-playground/validator/v10"
)

// ValidationMode selects the field rules applied to patient records.
type ValidationMode string

const (
	// ValidationRelaxed only requires a name.
	ValidationRelaxed ValidationMode = "relaxed"
	// ValidationStrict bounds the name to 5..15 characters and requires score >= 100.
	ValidationStrict ValidationMode = "strict"
)

// ParseValidationMode maps a config value to a mode; empty means relaxed.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch ValidationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ValidationRelaxed:
		return ValidationRelaxed, nil
	case ValidationStrict:
		return ValidationStrict, nil
	default:
		return "", fmt.Errorf("validation mode %q: %w", s, errs.ErrInvalidArgument)
	}
}

// ValidationError carries one message per offending form field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", errs.ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return errs.ErrValidation }

type relaxedPatient struct {
	Name string `form:"name" validate:"required"`
}

type strictPatient struct {
	Name  string `form:"name"  validate:"required,min=5,max=15"`
	Score int    `form:"score" validate:"gte=100"`
}

// PatientValidator checks records against the configured profile.
type PatientValidator struct {
	v    *validator.Validate
	mode ValidationMode
}

// NewPatientValidator builds a validator reporting errors under form field names.
func NewPatientValidator(mode ValidationMode) *PatientValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if mode == "" {
		mode = ValidationRelaxed
	}
	return &PatientValidator{v: v, mode: mode}
}

// Mode returns the active profile.
func (pv *PatientValidator) Mode() ValidationMode { return pv.mode }

// Validate returns nil or a *ValidationError.
func (pv *PatientValidator) Validate(p *model.Patient) error {
	var target any
	switch pv.mode {
	case ValidationStrict:
		target = strictPatient{Name: p.Name, Score: p.Score}
	default:
		target = relaxedPatient{Name: p.Name}
	}

	err := pv.v.Struct(target)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(ves))}
	for _, fe := range ves {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "is invalid"
	}
}
