package config

import (
	"fmt"
	"strings"
	"time"

	"sotugyo/pkg/logging"
)

// maxWatchDebounce bounds packages.watchDebounce.
const maxWatchDebounce = time.Minute

// ValidationError represents a validation error with context
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
		Suggestions: []string{fmt.Sprintf("Set %s to one of: %s", field, strings.Join(allowed, ", "))},
	}
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		if ve, ok := ValidateOneOf("logLevel", strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "error"}).(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	for i, root := range c.Packages.Roots {
		if strings.TrimSpace(root) == "" {
			errs.Add(fmt.Sprintf("packages.roots[%d]", i), "must not be empty", root)
		}
	}

	if d := c.Packages.WatchDebounce; d < 0 || d > maxWatchDebounce {
		errs.Add("packages.watchDebounce", fmt.Sprintf("must be between 0s and %s", maxWatchDebounce), d.String())
	}

	if c.Launch.LogRetention < 0 {
		errs.Add("launch.logRetention", "must not be negative", c.Launch.LogRetention)
	}

	if len(c.Structure.Entries) > 0 {
		if _, err := c.Policy().Validate(); err != nil {
			errs.Add("structure.entries", err.Error())
		}
	}

	return errs
}

// FormatValidationError creates a consistent validation error message
func FormatValidationError(entityType, entityName string, err error) error {
	if err == nil {
		return nil
	}

	if entityName != "" {
		return fmt.Errorf("validation failed for %s '%s': %w", entityType, entityName, err)
	}
	return fmt.Errorf("validation failed for %s: %w", entityType, err)
}
