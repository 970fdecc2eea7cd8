package launch

import "fmt"

// PackageNotFoundError is returned when a launch request names a package
// that is not in the catalog, or whose executable has disappeared since
// the catalog was built.
type PackageNotFoundError struct {
	Name    string
	Version string
	Reason  string
}

func (e *PackageNotFoundError) Error() string {
	ref := e.Name
	if e.Version != "" {
		ref += "-" + e.Version
	}
	if e.Reason != "" {
		return fmt.Sprintf("package %s not found: %s", ref, e.Reason)
	}
	return fmt.Sprintf("package %s not found", ref)
}

// ExecutableUnresolvedError is returned when a package is known but no
// executable could be resolved for it.
type ExecutableUnresolvedError struct {
	Name       string
	Version    string
	Descriptor string
}

func (e *ExecutableUnresolvedError) Error() string {
	return fmt.Sprintf("package %s-%s has no resolvable executable (see %s)", e.Name, e.Version, e.Descriptor)
}

// SpawnError is returned when the operating system refused to start the process.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command[0], e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
