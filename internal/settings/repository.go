package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"sotugyo/pkg/logging"
)

// RelativePath is where the settings document lives inside a project root.
const RelativePath = "config/project_settings.json"

// legacyRelativePath is the location used before the config/ directory existed.
const legacyRelativePath = "project_settings.json"

// keyProjectRoot is written for tools that read the file without the registry.
const keyProjectRoot = "project_root"

// corruptSuffixLayout names the copy a corrupt document is moved to before
// Save replaces it.
const corruptSuffixLayout = "20060102-150405"

// Repository loads and saves per-project settings documents.
type Repository struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	now   func() time.Time
}

// NewRepository creates a settings repository.
func NewRepository() *Repository {
	return &Repository{locks: make(map[string]*sync.Mutex), now: time.Now}
}

// PathFor returns the settings document path for a project root.
func PathFor(root string) string {
	return filepath.Join(root, filepath.FromSlash(RelativePath))
}

func (r *Repository) lockFor(root string) *sync.Mutex {
	key := filepath.Clean(root)
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// Load reads the settings for root. A missing or unreadable document yields
// defaults; only an invalid root is an error.
func (r *Repository) Load(root string) (*Settings, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("project root %q is not absolute", root)
	}
	l := r.lockFor(root)
	l.Lock()
	defer l.Unlock()

	legacy := false
	doc, err := readDocument(PathFor(root))
	if errors.Is(err, os.ErrNotExist) {
		doc, err = readDocument(filepath.Join(root, legacyRelativePath))
		if err == nil {
			logging.Info("Settings", "Using legacy settings file for %s", root)
			legacy = true
		}
	}
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Settings", "Ignoring unreadable settings for %s: %v", root, err)
		}
		doc = map[string]interface{}{}
	}
	s := newSettings(root, doc)
	if legacy {
		// Everything counts as changed so the first Save moves it to the new location.
		s.baseline = map[string]interface{}{}
	}
	return s, nil
}

// Save writes s back to its project root, merging with the current document
// on disk. Only keys changed since s was loaded are written; everything else
// on disk is kept. After Save, s reflects the merged document.
func (r *Repository) Save(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	l := r.lockFor(s.root)
	l.Lock()
	defer l.Unlock()

	path := PathFor(s.root)
	current, err := readDocument(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			if err := r.quarantine(path, err); err != nil {
				return err
			}
		}
		current = map[string]interface{}{}
	}

	mergeChanges(current, s.baseline, s.values)
	current[keyProjectRoot] = s.root

	if err := writeDocument(path, current); err != nil {
		return err
	}
	s.values = deepCopyMap(current)
	s.baseline = deepCopyMap(current)
	logging.Debug("Settings", "Saved settings for %s", s.root)
	return nil
}

// quarantine moves a document that cannot be parsed aside so Save never
// destroys it. A document that cannot even be read is left alone and Save fails.
func (r *Repository) quarantine(path string, cause error) error {
	var perr *parseError
	if !errors.As(cause, &perr) {
		return fmt.Errorf("refusing to overwrite unreadable settings %s: %w", path, cause)
	}
	movedTo := path + ".corrupt-" + r.now().UTC().Format(corruptSuffixLayout)
	if err := os.Rename(path, movedTo); err != nil {
		return fmt.Errorf("failed to move corrupt settings aside: %w", err)
	}
	logging.Warn("Settings", "Moved corrupt settings %s to %s: %v", path, movedTo, cause)
	return nil
}

// parseError marks a document that exists and was read but is not valid.
type parseError struct {
	Path string
	Err  error
}

func (e *parseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *parseError) Unwrap() error {
	return e.Err
}

// useNumber keeps numbers as json.Number so integers beyond 2^53 and exact
// decimals survive a load/save cycle unchanged.
func useNumber(d *json.Decoder) *json.Decoder {
	d.UseNumber()
	return d
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc, useNumber); err != nil {
		return nil, &parseError{Path: path, Err: err}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

func writeDocument(path string, doc map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".project_settings-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	_ = os.Chmod(tmpName, 0644)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

func baseName(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(root))
}
