package registry

import "fmt"

// NotFoundError is returned when a project ID is not registered.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.ID)
}

// DuplicatePathError is returned when a root is already registered.
type DuplicatePathError struct {
	Root     string
	Existing Project
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("root %s is already registered as project %q (%s)", e.Root, e.Existing.Name, e.Existing.ID)
}

// InvalidPathError is returned when a root is not an absolute path to an existing directory.
type InvalidPathError struct {
	Root   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid project root %q: %s", e.Root, e.Reason)
}

// InvalidNameError is returned when a display name fails validation.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid project name %q: %s", e.Name, e.Reason)
}

// RegistryCorruptWarning reports a registry document that could not be read.
// The registry continues with an empty state; the unreadable file is kept
// at MovedTo when it could be moved aside.
type RegistryCorruptWarning struct {
	Path    string
	MovedTo string
	Err     error
}

func (w *RegistryCorruptWarning) Error() string {
	if w.MovedTo != "" {
		return fmt.Sprintf("registry %s is corrupt and was moved to %s: %v", w.Path, w.MovedTo, w.Err)
	}
	return fmt.Sprintf("registry %s is unreadable: %v", w.Path, w.Err)
}

func (w *RegistryCorruptWarning) Unwrap() error {
	return w.Err
}
