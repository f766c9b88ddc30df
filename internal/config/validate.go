package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the settings against their field constraints
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid settings: %s", describe(fieldErrs))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// describe renders validator errors as "Field (rule)" pairs
func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Namespace(), rule))
	}
	return strings.Join(parts, ", ")
}
