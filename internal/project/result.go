package project

import (
	"fmt"
	"strings"

	"sotugyo/internal/catalog"
	"sotugyo/internal/registry"
	"sotugyo/internal/structure"
)

// Disposition says whether an issue may be fixed without asking the user.
type Disposition string

const (
	// AutoResolvable issues are fixed by Repair without further input.
	AutoResolvable Disposition = "AutoResolvable"
	// NeedsDecision issues are never fixed silently.
	NeedsDecision Disposition = "NeedsDecision"
	// Informational issues do not block anything.
	Informational Disposition = "Informational"
)

// IssueKind classifies an Issue.
type IssueKind string

const (
	IssueMissingEntry         IssueKind = "MissingEntry"
	IssueRootMissing          IssueKind = "RootMissing"
	IssueStructureConflict    IssueKind = "StructureConflict"
	IssueStructureNotice      IssueKind = "StructureNotice"
	IssueRegistryCorrupt      IssueKind = "RegistryCorrupt"
	IssueInvalidPath          IssueKind = "InvalidPath"
	IssueExecutableUnresolved IssueKind = "ExecutableUnresolved"
)

// Issue is one problem found while checking or changing a project.
type Issue struct {
	Kind        IssueKind   `json:"kind" yaml:"kind"`
	Disposition Disposition `json:"disposition" yaml:"disposition"`
	Path        string      `json:"path,omitempty" yaml:"path,omitempty"`
	Message     string      `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Disposition, i.Message)
}

// Result aggregates the outcome of a project operation for presentation.
type Result struct {
	Project *registry.Project `json:"project,omitempty" yaml:"project,omitempty"`
	Report  *structure.Report `json:"report,omitempty" yaml:"report,omitempty"`
	Created []structure.Entry `json:"created,omitempty" yaml:"created,omitempty"`
	Issues  []Issue           `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// OK reports whether the result has no blocking issues.
func (r Result) OK() bool {
	for _, i := range r.Issues {
		if i.Disposition != Informational {
			return false
		}
	}
	return true
}

// NeedsDecision reports whether any issue requires the user to decide.
func (r Result) NeedsDecision() bool {
	return len(r.Filter(NeedsDecision)) > 0
}

// Filter returns the issues with the given disposition.
func (r Result) Filter(d Disposition) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Disposition == d {
			out = append(out, i)
		}
	}
	return out
}

// Summary returns a one-line description of the result.
func (r Result) Summary() string {
	if len(r.Issues) == 0 {
		return "no issues"
	}
	counts := map[Disposition]int{}
	for _, i := range r.Issues {
		counts[i.Disposition]++
	}
	var parts []string
	for _, d := range []Disposition{NeedsDecision, AutoResolvable, Informational} {
		if counts[d] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[d], strings.ToLower(string(d))))
		}
	}
	return strings.Join(parts, ", ")
}

func (r *Result) add(kind IssueKind, d Disposition, path, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Disposition: d, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addReport(report structure.Report) {
	r.Report = &report
	if report.RootMissing {
		r.add(IssueRootMissing, NeedsDecision, report.Root, "project root %s does not exist", report.Root)
		return
	}
	for _, e := range report.Missing {
		r.add(IssueMissingEntry, AutoResolvable, e.Path, "%s is missing", e.String())
	}
	for _, c := range report.Conflicts {
		r.add(IssueStructureConflict, NeedsDecision, c.Entry.Path, "%s should be a %s but is a %s", c.Entry.String(), c.Entry.Kind, c.Got)
	}
	for _, n := range report.Notices {
		r.add(IssueStructureNotice, Informational, n.Entry.Path, "%s %s", n.Entry.String(), n.Message)
	}
}

func (r *Result) addRegistryWarnings(warnings []error) {
	for _, w := range warnings {
		path := ""
		if cw, ok := w.(*registry.RegistryCorruptWarning); ok {
			path = cw.Path
		}
		r.add(IssueRegistryCorrupt, NeedsDecision, path, "%s", w.Error())
	}
}

func (r *Result) addUnresolved(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	for _, p := range cat.Packages() {
		if p.Unresolved {
			r.add(IssueExecutableUnresolved, NeedsDecision, p.Descriptor, "package %s has no resolvable executable", p.Ref())
		}
	}
}
