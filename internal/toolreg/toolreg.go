package toolreg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"sotugyo/internal/catalog"
	"sotugyo/pkg/logging"
)

// SchemaVersion is the tools document version written by this release.
const SchemaVersion = 1

// DefaultVersion is used when a tool is registered without a version.
const DefaultVersion = "local"

// Tool is one registered executable.
type Tool struct {
	ID         string    `yaml:"id" json:"id"`
	Name       string    `yaml:"name" json:"name"`
	Version    string    `yaml:"version" json:"version"`
	Executable string    `yaml:"executable" json:"executable"`
	CreatedAt  time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// Ref returns the "name-version" request string for the tool.
func (t Tool) Ref() string {
	return t.Name + "-" + t.Version
}

// Document is the persisted tools state.
type Document struct {
	SchemaVersion int    `yaml:"schemaVersion" json:"schemaVersion"`
	Tools         []Tool `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Registration describes a tool to register. Name defaults to the
// executable's base name without extension and Version to DefaultVersion.
type Registration struct {
	Name       string
	Version    string
	Executable string
}

// Registry provides serialized access to the tools document.
type Registry struct {
	mu    sync.Mutex
	path  string
	now   func() time.Time
	newID func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides the tool ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// New returns a Registry persisted at path.
func New(path string, opts ...Option) *Registry {
	r := &Registry{
		path:  path,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the location of the tools document.
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) loadLocked() (*Document, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Document{SchemaVersion: SchemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
	}
	return &doc, nil
}

func (r *Registry) saveLocked(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create tools directory: %w", err)
	}
	doc.SchemaVersion = SchemaVersion
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal tools: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write tools: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace tools: %w", err)
	}
	return nil
}

// List returns the registered tools ordered by name and version.
func (r *Registry) List() ([]Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	tools := append([]Tool(nil), doc.Tools...)
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].Name != tools[j].Name {
			return tools[i].Name < tools[j].Name
		}
		return catalog.CompareVersions(tools[i].Version, tools[j].Version) > 0
	})
	return tools, nil
}

// Get returns the tool with the given ID.
func (r *Registry) Get(id string) (*Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	for i := range doc.Tools {
		if doc.Tools[i].ID == id {
			t := doc.Tools[i]
			return &t, nil
		}
	}
	return nil, &NotFoundError{ID: id}
}

// Register validates reg and adds it. The executable must be an absolute
// path to an existing regular file that is not registered yet.
func (r *Registry) Register(reg Registration) (Tool, error) {
	exe := strings.TrimSpace(reg.Executable)
	if !filepath.IsAbs(exe) {
		return Tool{}, &InvalidToolError{Field: "executable", Value: reg.Executable, Reason: "path is not absolute"}
	}
	exe = filepath.Clean(exe)
	info, err := os.Stat(exe)
	if err != nil {
		return Tool{}, &InvalidToolError{Field: "executable", Value: exe, Reason: "does not exist"}
	}
	if !info.Mode().IsRegular() {
		return Tool{}, &InvalidToolError{Field: "executable", Value: exe, Reason: "is not a regular file"}
	}

	name := strings.TrimSpace(reg.Name)
	if name == "" {
		base := filepath.Base(exe)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := validComponent("name", name); err != nil {
		return Tool{}, err
	}
	version := strings.TrimSpace(reg.Version)
	if version == "" {
		version = DefaultVersion
	}
	if err := validComponent("version", version); err != nil {
		return Tool{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadLocked()
	if err != nil {
		return Tool{}, err
	}
	key := canonical(exe)
	for _, existing := range doc.Tools {
		if canonical(existing.Executable) == key {
			return Tool{}, &DuplicateExecutableError{Executable: exe, Existing: existing}
		}
		if existing.Name == name && existing.Version == version {
			return Tool{}, &InvalidToolError{Field: "name", Value: name + "-" + version, Reason: "is already registered"}
		}
	}

	now := r.now().UTC().Truncate(time.Second)
	tool := Tool{
		ID:         r.newID(),
		Name:       name,
		Version:    version,
		Executable: exe,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	doc.Tools = append(doc.Tools, tool)
	if err := r.saveLocked(doc); err != nil {
		return Tool{}, err
	}
	logging.Info("ToolRegistry", "Registered tool %s (%s) at %s", tool.Ref(), tool.ID, tool.Executable)
	return tool, nil
}

// Unregister removes the tool with the given ID. It reports whether a tool
// was removed.
func (r *Registry) Unregister(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadLocked()
	if err != nil {
		return false, err
	}
	kept := doc.Tools[:0]
	for _, t := range doc.Tools {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(doc.Tools) {
		logging.Debug("ToolRegistry", "Unregister of unknown tool %s ignored", id)
		return false, nil
	}
	doc.Tools = kept
	if err := r.saveLocked(doc); err != nil {
		return false, err
	}
	logging.Info("ToolRegistry", "Unregistered tool %s", id)
	return true, nil
}

// RegisteredPackages returns every registered tool as a catalog package.
// A tool whose executable has gone missing stays listed as unresolved.
func (r *Registry) RegisteredPackages() ([]catalog.Package, error) {
	tools, err := r.List()
	if err != nil {
		return nil, err
	}
	pkgs := make([]catalog.Package, 0, len(tools))
	for _, t := range tools {
		pkg := catalog.Package{
			Name:       t.Name,
			Version:    t.Version,
			Root:       filepath.Dir(t.Executable),
			Descriptor: r.path,
		}
		if info, err := os.Stat(t.Executable); err == nil && info.Mode().IsRegular() {
			pkg.Executable = t.Executable
			pkg.ResolvedBy = catalog.ResolvedRegistered
		} else {
			pkg.Unresolved = true
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func validComponent(field, s string) error {
	switch {
	case s == "":
		return &InvalidToolError{Field: field, Value: s, Reason: "is empty"}
	case s == "." || s == "..":
		return &InvalidToolError{Field: field, Value: s, Reason: "is not allowed"}
	case strings.ContainsAny(s, `/\`):
		return &InvalidToolError{Field: field, Value: s, Reason: "contains a path separator"}
	}
	return nil
}

// canonical returns the comparable form of an executable path.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	p = filepath.Clean(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}
