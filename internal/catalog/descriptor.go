package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// DescriptorNames lists the descriptor file names recognised in a package
// directory, in order of preference.
var DescriptorNames = []string{"package.yaml", "package.yml", "package.json"}

// Descriptor is the on-disk package description.
type Descriptor struct {
	Name        flexString        `json:"name,omitempty"`
	Version     flexString        `json:"version,omitempty"`
	Description string            `json:"description,omitempty"`
	Executable  string            `json:"executable,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Path        []string          `json:"path,omitempty"`
	Resolve     *ResolveHint      `json:"resolve,omitempty"`
	// Vars are extra placeholders for environment and path values. They may
	// themselves use root, name and version, which they cannot override.
	Vars map[string]interface{} `json:"vars,omitempty"`
}

// ResolveHint is a declarative rule computing the executable path. Exactly
// one field may be set.
type ResolveHint struct {
	// Template is a text/template producing a path.
	Template string `json:"template,omitempty"`
	// Glob is a pattern relative to the package root.
	Glob string `json:"glob,omitempty"`
	// Env names a key of the descriptor environment whose value is the path.
	Env string `json:"env,omitempty"`
}

func (h *ResolveHint) validate() error {
	set := 0
	for _, v := range []string{h.Template, h.Glob, h.Env} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch set {
	case 0:
		return errors.New("resolve hint is empty")
	case 1:
		return nil
	default:
		return errors.New("resolve hint must set exactly one of template, glob or env")
	}
}

// flexString accepts both strings and bare YAML numbers such as `version: 2024`.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

// findDescriptor returns the path of the first descriptor file in dir.
func findDescriptor(dir string) (string, bool) {
	for _, name := range DescriptorNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// ReadDescriptor decodes a descriptor file. YAML and JSON are both accepted;
// unknown fields are ignored.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	return &d, nil
}

// validName rejects names that cannot be a single directory component.
func validName(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("is empty")
	case s == "." || s == "..":
		return fmt.Errorf("%q is not allowed", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%q contains a path separator", s)
	}
	return nil
}
