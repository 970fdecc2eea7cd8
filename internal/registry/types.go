package registry

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"
)

// SchemaVersion is the registry document version written by this release.
const SchemaVersion = 1

// maxProjectNameLength bounds display names so they fit list views.
const maxProjectNameLength = 128

// Project is a registered project. ID and Root never change after
// registration; only Name may be updated in place.
type Project struct {
	// ID is the stable opaque identifier of the project
	ID string `yaml:"id" json:"id"`
	// Name is the display name shown to the user
	Name string `yaml:"name" json:"name"`
	// Root is the absolute path of the project root directory
	Root string `yaml:"root" json:"root"`
	// CreatedAt is the registration time in UTC
	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
}

// Document is the persisted registry state.
type Document struct {
	// SchemaVersion identifies the document layout
	SchemaVersion int `yaml:"schemaVersion" json:"schemaVersion"`
	// LastSelected is the ID of the most recently selected project
	LastSelected string `yaml:"lastSelected,omitempty" json:"lastSelected,omitempty"`
	// Projects is the ordered list of registered projects
	Projects []Project `yaml:"projects,omitempty" json:"projects,omitempty"`
}

// Get returns the project with the given ID, or nil if not found.
func (d *Document) Get(id string) *Project {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i]
		}
	}
	return nil
}

// FindByRoot returns the project registered at root, or nil.
func (d *Document) FindByRoot(root string) *Project {
	for i := range d.Projects {
		if samePath(d.Projects[i].Root, root) {
			return &d.Projects[i]
		}
	}
	return nil
}

// Add appends a project, preserving insertion order.
func (d *Document) Add(p Project) {
	d.Projects = append(d.Projects, p)
}

// Remove removes the project with the given ID.
// Returns true if the project was found and removed, false otherwise.
// If the removed project was the last selected one, LastSelected is cleared.
func (d *Document) Remove(id string) bool {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			d.Projects = append(d.Projects[:i], d.Projects[i+1:]...)
			if d.LastSelected == id {
				d.LastSelected = ""
			}
			return true
		}
	}
	return false
}

// normalize drops entries that cannot be used and clears a dangling
// selection. It returns a description of each dropped entry.
func (d *Document) normalize() []string {
	var dropped []string
	seenIDs := make(map[string]bool, len(d.Projects))
	kept := d.Projects[:0]
	for _, p := range d.Projects {
		switch {
		case p.ID == "" || p.Root == "":
			dropped = append(dropped, fmt.Sprintf("project %q has no id or root", p.Name))
		case seenIDs[p.ID]:
			dropped = append(dropped, fmt.Sprintf("project id %s is listed twice", p.ID))
		default:
			seenIDs[p.ID] = true
			kept = append(kept, p)
		}
	}
	d.Projects = kept

	if d.LastSelected != "" && !seenIDs[d.LastSelected] {
		dropped = append(dropped, fmt.Sprintf("last selected project %s no longer exists", d.LastSelected))
		d.LastSelected = ""
	}
	return dropped
}

// ValidateProjectName validates a display name.
// Names must be non-blank, at most 128 characters and free of control characters.
func ValidateProjectName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &InvalidNameError{Name: name, Reason: "name cannot be empty"}
	}
	if len([]rune(trimmed)) > maxProjectNameLength {
		return &InvalidNameError{Name: name, Reason: fmt.Sprintf("name cannot exceed %d characters", maxProjectNameLength)}
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return &InvalidNameError{Name: name, Reason: "name cannot contain control characters"}
		}
	}
	return nil
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
