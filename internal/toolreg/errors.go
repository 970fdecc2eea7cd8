package toolreg

import "fmt"

// NotFoundError is returned when a tool ID is not registered.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registered tool %q not found", e.ID)
}

// DuplicateExecutableError is returned when an executable is already registered.
type DuplicateExecutableError struct {
	Executable string
	Existing   Tool
}

func (e *DuplicateExecutableError) Error() string {
	return fmt.Sprintf("executable %s is already registered as %s (%s)", e.Executable, e.Existing.Ref(), e.Existing.ID)
}

// InvalidToolError is returned when a registration fails validation.
type InvalidToolError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidToolError) Error() string {
	return fmt.Sprintf("invalid tool %s %q: %s", e.Field, e.Value, e.Reason)
}
