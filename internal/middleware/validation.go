package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/practice-api/internal/model"
)

// FieldError is one failed binding rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var customMessages = map[string]string{
	"required":           "field is required",
	"email":              "invalid email format",
	"max":                "value is too long",
	"weekday":            "must be a day number between 0 (Sunday) and 6 (Saturday)",
	"hhmm":               "must be a time of day in HH:MM",
	"exception_type":     "must be one of time_off, modified_hours, type_only",
	"appointment_status": "must be one of scheduled, confirmed, completed, cancelled, no_show",
	"gtfield":            "must be after the start",
	"gtefield":           "must not be before the start",
}

var registerOnce sync.Once

// RegisterValidators installs the domain binding tags on gin's validator
// and reports fields by their json names.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		tags := map[string]validator.Func{
			"weekday":            validateWeekday,
			"hhmm":               validateTimeOfDay,
			"exception_type":     validateExceptionType,
			"appointment_status": validateAppointmentStatus,
		}
		for tag, fn := range tags {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

func validateWeekday(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return model.Weekday(fl.Field().Int()).Valid()
	}
	return false
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return model.TimeOfDay(fl.Field().Int()).Valid()
	case reflect.String:
		_, err := model.ParseTimeOfDay(fl.Field().String())
		return err == nil
	}
	return false
}

func validateExceptionType(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && model.ExceptionType(fl.Field().String()).Valid()
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String && model.AppointmentStatus(fl.Field().String()).Valid()
}

// FieldErrors flattens a binding error into per-field messages. Errors that
// are not validator errors (malformed JSON) come back as a single entry.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg := customMessages[e.Tag()]
		if msg == "" {
			msg = fmt.Sprintf("failed %s validation", e.Tag())
		}
		out = append(out, FieldError{Field: fieldPath(e.Namespace()), Message: msg})
	}
	return out
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
