// Package convert maps patient records to and from their HTML form and JSON shapes.
package convert

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/and161185/patient-registry/internal/model"
	"github.com/gorilla/schema"
)

// DateLayout is the wire format of birth dates (HTML date inputs use it too).
const DateLayout = "2006-01-02"

// --- form ---

// PatientForm is the submitted create/edit form, including the listing
// position to return to afterwards.
type PatientForm struct {
	ID        int64     `schema:"id"`
	Name      string    `schema:"name"`
	BirthDate time.Time `schema:"birthDate"`
	Sick      bool      `schema:"sick"`
	Score     int       `schema:"score"`
	Page      int       `schema:"page"`
	Keyword   string    `schema:"keyword"`
}

// LoginForm is the submitted login form.
type LoginForm struct {
	Username   string `schema:"username"`
	Password   string `schema:"password"`
	RememberMe bool   `schema:"remember-me"`
}

// NewDecoder returns a form decoder that accepts YYYY-MM-DD dates and
// checkbox values ("on") and ignores fields it does not know, such as _csrf.
func NewDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	d.RegisterConverter(time.Time{}, func(s string) reflect.Value {
		if s == "" {
			return reflect.ValueOf(time.Time{})
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	d.RegisterConverter(false, func(s string) reflect.Value {
		switch s {
		case "on", "true", "1", "yes":
			return reflect.ValueOf(true)
		case "", "off", "false", "0", "no":
			return reflect.ValueOf(false)
		default:
			return reflect.Value{}
		}
	})
	return d
}

// DecodePatientForm decodes form values. Fields that fail to convert are
// returned as per-field messages next to whatever did decode.
func DecodePatientForm(d *schema.Decoder, values url.Values) (PatientForm, map[string]string, error) {
	var f PatientForm
	err := d.Decode(&f, values)
	if err == nil {
		return f, nil, nil
	}
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return f, nil, err
	}
	fields := make(map[string]string, len(multi))
	for key, e := range multi {
		var ce schema.ConversionError
		if !errors.As(e, &ce) {
			return f, nil, err
		}
		fields[key] = conversionMessage(key)
	}
	return f, fields, nil
}

func conversionMessage(field string) string {
	switch field {
	case "birthDate":
		return "must be a date (YYYY-MM-DD)"
	case "sick":
		return "must be checked or unchecked"
	default:
		return "must be a whole number"
	}
}

// DecodeLoginForm decodes the login form.
func DecodeLoginForm(d *schema.Decoder, values url.Values) (LoginForm, error) {
	var f LoginForm
	err := d.Decode(&f, values)
	return f, err
}

// ToPatient converts a submitted form into a domain record.
func (f PatientForm) ToPatient() model.Patient {
	return model.Patient{ID: f.ID, Name: f.Name, BirthDate: f.BirthDate, Sick: f.Sick, Score: f.Score}
}

// FromPatient fills a form from a stored record.
func FromPatient(p model.Patient, page int, keyword string) PatientForm {
	return PatientForm{
		ID:        p.ID,
		Name:      p.Name,
		BirthDate: p.BirthDate,
		Sick:      p.Sick,
		Score:     p.Score,
		Page:      page,
		Keyword:   keyword,
	}
}

// BirthDateValue renders the birth date for a date input; zero is empty.
func (f PatientForm) BirthDateValue() string { return FormatDate(f.BirthDate) }

// FormatDate renders t as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ListURL is the listing location the form returns to.
func ListURL(page int, keyword string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("keyword", keyword)
	return "/user/index?" + q.Encode()
}

// --- JSON ---

// PatientJSON is the JSON shape of a record; birthDate is null when unknown.
type PatientJSON struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	BirthDate *string `json:"birthDate"`
	Sick      bool    `json:"sick"`
	Score     int     `json:"score"`
}

// ToPatientJSON converts a domain record to its JSON shape.
func ToPatientJSON(p model.Patient) PatientJSON {
	out := PatientJSON{ID: p.ID, Name: p.Name, Sick: p.Sick, Score: p.Score}
	if !p.BirthDate.IsZero() {
		s := p.BirthDate.Format(DateLayout)
		out.BirthDate = &s
	}
	return out
}

// ToPatientsJSON converts a list; the result is never nil so it encodes as [].
func ToPatientsJSON(ps []model.Patient) []PatientJSON {
	out := make([]PatientJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToPatientJSON(p))
	}
	return out
}
