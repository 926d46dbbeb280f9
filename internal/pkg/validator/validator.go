// Package validator is a thin wrapper around go-playground/validator,
// providing declarative struct validation with standardized error
// formatting. Fields are validated via tags (e.g., `validate:"required"`),
// and violations are reported as a combined error chain.
package validator

import (
	"errors"
	"fmt"

	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is the root error of every validation failure chain,
// allowing callers to detect validation problems with errors.Is even when
// multiple field errors are reported.
var ErrValidationFailed = errors.New("struct validation failed")

// validator is the singleton go-playground instance, created on package load.
var validator *gvalidator.Validate

// errStringFormat describes a single field violation.
//
// Example: "'Address': value '0x' does not meet the requirements for the 'required' validation"
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())
}

// formatError converts raw validator errors into a readable multi-error
// chain rooted at ErrValidationFailed. Non-validation errors pass through
// unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		errs = append(errs, fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		))
	}

	return errors.Join(errs...)
}

// Validate checks whether the given struct satisfies its validation tags.
// It returns nil on success, or a combined error that includes
// ErrValidationFailed plus one formatted message per failing field.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
