package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"sotugyo/pkg/logging"
)

// Registry provides serialized access to the project registry document.
// Every mutating call persists the full document before returning.
type Registry struct {
	mu         sync.RWMutex
	path       string
	legacyPath string
	warnings   []error
	unreadable bool
	// readErr is set while the document exists but cannot be read.
	readErr error

	now   func() time.Time
	newID func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLegacyPath sets the location of a JSON registry written by earlier
// releases. It is imported when the current document does not exist yet.
func WithLegacyPath(path string) Option {
	return func(r *Registry) { r.legacyPath = path }
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides the project ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// New returns a Registry persisted at path.
func New(path string, opts ...Option) *Registry {
	r := &Registry{
		path:  path,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the location of the registry document.
func (r *Registry) Path() string {
	return r.path
}

// Warnings returns the non-fatal problems met while loading, such as a
// RegistryCorruptWarning. Each warning is reported once per Registry.
func (r *Registry) Warnings() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]error, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Load reads the registry document.
// A missing document yields an empty registry. A corrupt document yields an
// empty registry and records a RegistryCorruptWarning.
func (r *Registry) Load() (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadLocked()
}

// loadLocked performs the actual load. The caller must hold the write lock
// because recovering from a corrupt or legacy document touches the disk.
func (r *Registry) loadLocked() (*Document, error) {
	r.readErr = nil
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.importLegacyLocked()
		}
		r.readErr = err
		if !r.unreadable {
			r.unreadable = true
			r.recordCorrupt(&RegistryCorruptWarning{Path: r.path, Err: err})
		}
		return &Document{SchemaVersion: SchemaVersion}, nil
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		r.quarantineLocked(err)
		return &Document{SchemaVersion: SchemaVersion}, nil
	}

	for _, reason := range doc.normalize() {
		logging.Warn("Registry", "Dropping registry entry: %s", reason)
	}
	return &doc, nil
}

// quarantineLocked moves a corrupt document aside so it is never silently
// overwritten and records the warning.
func (r *Registry) quarantineLocked(cause error) {
	warning := &RegistryCorruptWarning{Path: r.path, Err: cause}
	target := fmt.Sprintf("%s.corrupt-%s", r.path, r.now().UTC().Format("20060102-150405"))
	if err := os.Rename(r.path, target); err != nil {
		logging.Error("Registry", err, "Failed to move corrupt registry aside")
	} else {
		warning.MovedTo = target
	}
	r.recordCorrupt(warning)
}

func (r *Registry) recordCorrupt(w *RegistryCorruptWarning) {
	logging.Warn("Registry", "%s; continuing with an empty registry", w.Error())
	r.warnings = append(r.warnings, w)
}

// saveLocked writes the document through a temporary file so a crash never
// leaves a half-written registry behind.
func (r *Registry) saveLocked(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	doc.SchemaVersion = SchemaVersion
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// mutate loads the document, applies fn and persists the result when fn
// reports a change. A document that exists but cannot be read is never
// overwritten.
func (r *Registry) mutate(fn func(doc *Document) (bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadLocked()
	if err != nil {
		return err
	}
	if r.readErr != nil {
		return fmt.Errorf("refusing to modify unreadable registry %s: %w", r.path, r.readErr)
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return r.saveLocked(doc)
}

// List returns all registered projects in registration order.
func (r *Registry) List() ([]Project, error) {
	doc, err := r.Load()
	if err != nil {
		return nil, err
	}
	return doc.Projects, nil
}

// Get returns the project with the given ID.
func (r *Registry) Get(id string) (*Project, error) {
	doc, err := r.Load()
	if err != nil {
		return nil, err
	}
	p := doc.Get(id)
	if p == nil {
		return nil, &NotFoundError{ID: id}
	}
	return p, nil
}

// Register adds a project rooted at root.
// root must be an absolute path to an existing directory that is not yet registered.
func (r *Registry) Register(name, root string) (Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return Project{}, err
	}
	cleanRoot, err := validateRoot(root)
	if err != nil {
		return Project{}, err
	}

	var created Project
	err = r.mutate(func(doc *Document) (bool, error) {
		if existing := doc.FindByRoot(cleanRoot); existing != nil {
			return false, &DuplicatePathError{Root: cleanRoot, Existing: *existing}
		}
		created = Project{
			ID:        r.newID(),
			Name:      strings.TrimSpace(name),
			Root:      cleanRoot,
			CreatedAt: r.now().UTC().Truncate(time.Second),
		}
		doc.Add(created)
		return true, nil
	})
	if err != nil {
		return Project{}, err
	}

	logging.Info("Registry", "Registered project %q (%s) at %s", created.Name, created.ID, created.Root)
	return created, nil
}

// Unregister removes the project with the given ID. Unknown IDs are ignored.
// If the project was the last selected one, the selection is cleared.
func (r *Registry) Unregister(id string) error {
	return r.mutate(func(doc *Document) (bool, error) {
		if !doc.Remove(id) {
			logging.Debug("Registry", "Unregister of unknown project %s ignored", id)
			return false, nil
		}
		logging.Info("Registry", "Unregistered project %s", id)
		return true, nil
	})
}

// Select marks the project with the given ID as last selected.
func (r *Registry) Select(id string) error {
	return r.mutate(func(doc *Document) (bool, error) {
		if doc.Get(id) == nil {
			return false, &NotFoundError{ID: id}
		}
		if doc.LastSelected == id {
			return false, nil
		}
		doc.LastSelected = id
		return true, nil
	})
}

// LastSelected returns the last selected project, or nil if none is selected.
func (r *Registry) LastSelected() (*Project, error) {
	doc, err := r.Load()
	if err != nil {
		return nil, err
	}
	if doc.LastSelected == "" {
		return nil, nil
	}
	return doc.Get(doc.LastSelected), nil
}

// Rename updates the display name of a project.
func (r *Registry) Rename(id, name string) error {
	if err := ValidateProjectName(name); err != nil {
		return err
	}
	return r.mutate(func(doc *Document) (bool, error) {
		p := doc.Get(id)
		if p == nil {
			return false, &NotFoundError{ID: id}
		}
		trimmed := strings.TrimSpace(name)
		if p.Name == trimmed {
			return false, nil
		}
		p.Name = trimmed
		return true, nil
	})
}

// IDs returns all project IDs for shell completion.
func (r *Registry) IDs() ([]string, error) {
	doc, err := r.Load()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(doc.Projects))
	for i, p := range doc.Projects {
		ids[i] = p.ID
	}
	return ids, nil
}

func validateRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", &InvalidPathError{Root: root, Reason: "path is empty"}
	}
	if !filepath.IsAbs(root) {
		return "", &InvalidPathError{Root: root, Reason: "path is not absolute"}
	}
	clean := filepath.Clean(root)
	info, err := os.Stat(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &InvalidPathError{Root: root, Reason: "directory does not exist"}
		}
		return "", &InvalidPathError{Root: root, Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", &InvalidPathError{Root: root, Reason: "not a directory"}
	}
	return clean, nil
}
