package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/Pret-a-LLOD/Fintan/errors"
)

// FieldError is one failed check, keyed by configuration path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates failed checks so that every problem in a settings
// block is reported at once. Checks chain:
//
//	v := validation.New().Min("stream.capacity", c, 1).Range("server.port", p, 0, 65535)
type Validator struct {
	errors []FieldError
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

func (v *Validator) check(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

// Errors returns the recorded failures in check order.
func (v *Validator) Errors() []FieldError { return v.errors }

// Validate returns nil when every check passed, else an invalid-input
// AppError listing the failures.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return fieldsError(v.errors)
}

// Required fails on blank values.
func (v *Validator) Required(field, value string) *Validator {
	return v.check(strings.TrimSpace(value) != "", field, "is required")
}

// URL fails unless a non-empty value is an absolute http(s) URL.
func (v *Validator) URL(field, value string) *Validator {
	if value == "" {
		return v
	}
	u, err := url.Parse(value)
	return v.check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
		field, "must be an http or https URL")
}

// Min fails when value is below minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	return v.check(value >= minVal, field, fmt.Sprintf("must be at least %d (got: %d)", minVal, value))
}

// Range fails when value is outside [minVal, maxVal].
func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	return v.check(value >= minVal && value <= maxVal, field,
		fmt.Sprintf("must be between %d and %d (got: %d)", minVal, maxVal, value))
}

// Pattern fails when a non-empty value does not match pattern.
func (v *Validator) Pattern(field, value, pattern string) *Validator {
	if value == "" {
		return v
	}
	re, err := regexp.Compile(pattern)
	return v.check(err == nil && re.MatchString(value), field, fmt.Sprintf("%q does not match the required format", value))
}

// OneOf fails when a non-empty value is not in allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	return v.check(value == "" || slices.Contains(allowed, value), field,
		"must be one of: "+strings.Join(allowed, ", "))
}

// Custom records message for field unless ok.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	return v.check(ok, field, message)
}

// Required checks a single value and returns an error when it is blank.
func Required(field, value string) error {
	if appErr := New().Required(field, value).Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func fieldsError(fields []FieldError) *errors.AppError {
	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Field + ": " + f.Message
	}
	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}
