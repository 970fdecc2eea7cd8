package structure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sotugyo/pkg/logging"
)

// Conflict is a required path that exists with the wrong type.
type Conflict struct {
	Entry Entry  `json:"entry"`
	Got   string `json:"got"`
}

// Notice is a non-blocking observation, such as a must-be-empty directory
// that has contents.
type Notice struct {
	Entry   Entry  `json:"entry"`
	Message string `json:"message"`
}

// Report is the result of validating a project root against a policy.
type Report struct {
	Root        string     `json:"root"`
	RootMissing bool       `json:"rootMissing,omitempty"`
	Missing     []Entry    `json:"missing,omitempty"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
	Notices     []Notice   `json:"notices,omitempty"`
}

// Valid reports whether the root fully conforms to the policy.
func (r Report) Valid() bool {
	return !r.RootMissing && len(r.Missing) == 0 && len(r.Conflicts) == 0
}

// Summary returns a one-line description of the report.
func (r Report) Summary() string {
	if r.Valid() {
		return "project structure is complete"
	}
	var parts []string
	if r.RootMissing {
		parts = append(parts, "project root does not exist")
	}
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", joinEntries(r.Missing)))
	}
	for _, c := range r.Conflicts {
		parts = append(parts, fmt.Sprintf("conflict: %s is a %s", c.Entry.String(), c.Got))
	}
	return strings.Join(parts, "; ")
}

func joinEntries(entries []Entry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}

// Service validates and repairs project roots against a Policy.
type Service struct {
	policy Policy
}

// NewService returns a Service for policy. The policy is validated once here.
func NewService(policy Policy) (*Service, error) {
	valid, err := policy.Validate()
	if err != nil {
		return nil, err
	}
	return &Service{policy: valid}, nil
}

// Policy returns a copy of the policy in effect.
func (s *Service) Policy() Policy {
	out := make(Policy, len(s.policy))
	copy(out, s.policy)
	return out
}

type pathState int

const (
	stateMissing pathState = iota
	stateDir
	stateFile
	stateOther
)

func (st pathState) String() string {
	switch st {
	case stateMissing:
		return "missing"
	case stateDir:
		return "directory"
	case stateFile:
		return "file"
	default:
		return "special file"
	}
}

// inspect returns the state of path. Errors other than non-existence (for
// example a parent that is a regular file) are reported with stateOther.
func inspect(path string) (pathState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stateMissing, nil
		}
		return stateOther, err
	}
	switch {
	case info.IsDir():
		return stateDir, nil
	case info.Mode().IsRegular():
		return stateFile, nil
	default:
		return stateOther, nil
	}
}

func matches(k Kind, st pathState) bool {
	return (k == KindDir && st == stateDir) || (k == KindFile && st == stateFile)
}

func describe(st pathState, err error) string {
	if err != nil {
		return "inaccessible path (" + err.Error() + ")"
	}
	return st.String()
}

func checkRoot(root string) (bool, error) {
	if !filepath.IsAbs(root) {
		return false, fmt.Errorf("project root %q is not absolute", root)
	}
	st, err := inspect(root)
	switch {
	case st == stateMissing:
		return false, nil
	case st == stateDir:
		return true, nil
	default:
		return false, &StructureConflictError{Path: root, Want: KindDir, Got: describe(st, err)}
	}
}

// Validate compares root against the policy without touching the filesystem.
func (s *Service) Validate(root string) (Report, error) {
	report := Report{Root: root}

	exists, err := checkRoot(root)
	if err != nil {
		return report, err
	}
	if !exists {
		report.RootMissing = true
		report.Missing = s.Policy()
		return report, nil
	}

	for _, e := range s.policy {
		full := filepath.Join(root, filepath.FromSlash(e.Path))
		st, statErr := inspect(full)
		switch {
		case st == stateMissing:
			report.Missing = append(report.Missing, e)
		case !matches(e.Kind, st):
			report.Conflicts = append(report.Conflicts, Conflict{Entry: e, Got: describe(st, statErr)})
		case e.Mode == ModeMustBeEmpty:
			if empty, err := isEmpty(full, st); err == nil && !empty {
				report.Notices = append(report.Notices, Notice{Entry: e, Message: "expected to be empty but has contents"})
			}
		}
	}

	logging.Debug("Structure", "Validated %s: %s", root, report.Summary())
	return report, nil
}

// Ensure creates the entries missing below root, in policy order, and
// returns the entries it created. Existing content is never modified. When
// a required path has the wrong type Ensure stops and returns a
// *StructureConflictError that also lists the entries created so far.
func (s *Service) Ensure(root string) ([]Entry, error) {
	exists, err := checkRoot(root)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create project root %s: %w", root, err)
		}
		logging.Info("Structure", "Created project root %s", root)
	}

	var created []Entry
	for _, e := range s.policy {
		full := filepath.Join(root, filepath.FromSlash(e.Path))
		st, statErr := inspect(full)
		if st != stateMissing {
			if !matches(e.Kind, st) {
				conflict := &StructureConflictError{Path: full, Want: e.Kind, Got: describe(st, statErr), Created: created}
				logging.Warn("Structure", "%s", conflict.Error())
				return created, conflict
			}
			continue
		}

		if err := create(full, e); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", full, err)
		}
		created = append(created, e)
	}

	if len(created) > 0 {
		logging.Info("Structure", "Created %d missing entries under %s: %s", len(created), root, joinEntries(created))
	}
	return created, nil
}

func create(full string, e Entry) error {
	if e.Kind == KindDir {
		return os.MkdirAll(full, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	// O_EXCL keeps a file that appeared since the check from being truncated.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, e.Content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func isEmpty(full string, st pathState) (bool, error) {
	if st == stateFile {
		info, err := os.Stat(full)
		if err != nil {
			return false, err
		}
		return info.Size() == 0, nil
	}
	f, err := os.Open(full)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
