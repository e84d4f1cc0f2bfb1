// Package contact implements the contact form submission workflow.
package contact

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Fields are the values of the contact form.
type Fields struct {
	Name    string `form:"name" json:"name" validate:"required"`
	Email   string `form:"email" json:"email" validate:"required,email"`
	Subject string `form:"subject" json:"subject" validate:"required"`
	Message string `form:"message" json:"message" validate:"required"`
}

// IsZero reports whether every field is empty.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidationError lists the form fields that failed validation, keyed by form name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid contact form: %s", strings.Join(names, ", "))
}

// Is makes a ValidationError match ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validate checks that every field is present and the email is well formed.
func (f Fields) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate contact form")
	}

	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			verr.Fields[fe.Field()] = "Please fill out this field."
		case "email":
			verr.Fields[fe.Field()] = "Please enter a valid email address."
		default:
			verr.Fields[fe.Field()] = "Invalid value."
		}
	}
	return verr
}
