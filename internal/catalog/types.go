package catalog

import (
	"fmt"
	"path/filepath"
)

// DiagnosticKind classifies a non-fatal problem found during a scan.
type DiagnosticKind string

const (
	// DiagnosticMalformed marks a descriptor that could not be used as written.
	DiagnosticMalformed DiagnosticKind = "Malformed"

	// DiagnosticDuplicate marks a name+version already provided by an
	// earlier directory.
	DiagnosticDuplicate DiagnosticKind = "Duplicate"

	// DiagnosticCancelled marks a scan that stopped before visiting every candidate.
	DiagnosticCancelled DiagnosticKind = "Cancelled"

	// DiagnosticUnreadable marks a repository root or candidate that could not be listed.
	DiagnosticUnreadable DiagnosticKind = "Unreadable"
)

// Diagnostic describes one problem found during a scan.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind" yaml:"kind"`
	Path    string         `json:"path,omitempty" yaml:"path,omitempty"`
	Message string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Message, d.Path)
}

// Resolution names how a package's executable was found.
type Resolution string

const (
	ResolvedExplicit Resolution = "executable"
	ResolvedTemplate Resolution = "template"
	ResolvedGlob     Resolution = "glob"
	ResolvedEnv      Resolution = "env"
	// ResolvedRegistered marks a tool registered by path rather than found
	// in a package repository.
	ResolvedRegistered Resolution = "registered"
)

// Package is one tool package discovered in a repository root.
type Package struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Root is the package directory; RepositoryRoot is the scanned root it
	// was found under.
	Root           string `json:"root" yaml:"root"`
	RepositoryRoot string `json:"repositoryRoot" yaml:"repositoryRoot"`
	Descriptor     string `json:"descriptor" yaml:"descriptor"`

	// Executable is the absolute path of the resolved executable. It is
	// empty when Unresolved is set.
	Executable string     `json:"executable,omitempty" yaml:"executable,omitempty"`
	Unresolved bool       `json:"unresolved" yaml:"unresolved"`
	ResolvedBy Resolution `json:"resolvedBy,omitempty" yaml:"resolvedBy,omitempty"`

	Tools       []string          `json:"tools,omitempty" yaml:"tools,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
	// PathPrepend holds absolute directories to put in front of PATH.
	PathPrepend []string `json:"pathPrepend,omitempty" yaml:"pathPrepend,omitempty"`
}

// Ref returns the "name-version" request string for the package.
func (p Package) Ref() string {
	return p.Name + "-" + p.Version
}

// ExecutableName returns the base name of the resolved executable.
func (p Package) ExecutableName() string {
	if p.Executable == "" {
		return ""
	}
	return filepath.Base(p.Executable)
}

func (p Package) clone() Package {
	out := p
	out.Tools = append([]string(nil), p.Tools...)
	out.PathPrepend = append([]string(nil), p.PathPrepend...)
	if p.Environment != nil {
		out.Environment = make(map[string]string, len(p.Environment))
		for k, v := range p.Environment {
			out.Environment[k] = v
		}
	}
	return out
}
