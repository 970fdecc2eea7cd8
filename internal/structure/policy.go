package structure

import (
	"fmt"
	"path"
	"strings"
)

// Kind is the filesystem type a policy entry requires.
type Kind string

const (
	KindDir  Kind = "dir"
	KindFile Kind = "file"
)

// Mode describes how a pre-existing entry is treated.
type Mode string

const (
	// ModeMayPreExist accepts an existing entry with any contents.
	ModeMayPreExist Mode = "mayPreExist"
	// ModeMustBeEmpty expects the entry to be empty. A populated entry is
	// reported as a notice; it is never cleared.
	ModeMustBeEmpty Mode = "mustBeEmpty"
)

// Entry is one required path below a project root.
type Entry struct {
	// Path is slash separated and relative to the project root
	Path string `yaml:"path" json:"path"`
	// Kind is the required filesystem type
	Kind Kind `yaml:"kind" json:"kind"`
	// Mode controls the treatment of an existing entry
	Mode Mode `yaml:"mode,omitempty" json:"mode,omitempty"`
	// Content is written when a missing file entry is created
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

func (e Entry) String() string {
	if e.Kind == KindDir {
		return e.Path + "/"
	}
	return e.Path
}

// Policy is the ordered list of entries a project root must contain.
// Entries are checked and created in order.
type Policy []Entry

const (
	defaultSettingsContent  = "{}\n"
	defaultNodeGraphContent = "{\n  \"nodes\": [],\n  \"connections\": []\n}\n"
)

// DefaultPolicy returns the standard project skeleton.
func DefaultPolicy() Policy {
	return Policy{
		{Path: "assets", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "assets/source", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "assets/published", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "renders", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "reviews", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "config", Kind: KindDir, Mode: ModeMayPreExist},
		{Path: "config/project_settings.json", Kind: KindFile, Mode: ModeMayPreExist, Content: defaultSettingsContent},
		{Path: "config/node_graph.json", Kind: KindFile, Mode: ModeMayPreExist, Content: defaultNodeGraphContent},
	}
}

// Validate checks that the policy itself is well formed: every path is
// relative, stays below the root and appears once, and every kind and mode
// is known. Empty modes are normalized to ModeMayPreExist.
func (p Policy) Validate() (Policy, error) {
	seen := make(map[string]bool, len(p))
	out := make(Policy, 0, len(p))

	for i, e := range p {
		clean := path.Clean(strings.ReplaceAll(strings.TrimSpace(e.Path), "\\", "/"))
		switch {
		case e.Path == "" || clean == ".":
			return nil, fmt.Errorf("policy entry %d: path is empty", i)
		case path.IsAbs(clean) || strings.Contains(clean, ":"):
			return nil, fmt.Errorf("policy entry %d: path %q must be relative", i, e.Path)
		case clean == ".." || strings.HasPrefix(clean, "../"):
			return nil, fmt.Errorf("policy entry %d: path %q escapes the project root", i, e.Path)
		case seen[clean]:
			return nil, fmt.Errorf("policy entry %d: path %q is listed twice", i, e.Path)
		}
		seen[clean] = true

		if e.Kind != KindDir && e.Kind != KindFile {
			return nil, fmt.Errorf("policy entry %d: unknown kind %q", i, e.Kind)
		}
		switch e.Mode {
		case "":
			e.Mode = ModeMayPreExist
		case ModeMayPreExist, ModeMustBeEmpty:
		default:
			return nil, fmt.Errorf("policy entry %d: unknown mode %q", i, e.Mode)
		}
		if e.Kind == KindDir && e.Content != "" {
			return nil, fmt.Errorf("policy entry %d: directory %q cannot have content", i, e.Path)
		}

		e.Path = clean
		out = append(out, e)
	}
	return out, nil
}
