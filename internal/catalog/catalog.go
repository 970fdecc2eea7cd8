package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Catalog is the immutable result of one scan.
type Catalog struct {
	roots       []string
	packages    []Package
	index       map[string]int
	diagnostics []Diagnostic
	cancelled   bool
	scannedAt   time.Time
}

func newCatalog(roots []string, at time.Time) *Catalog {
	return &Catalog{
		roots:     append([]string(nil), roots...),
		index:     make(map[string]int),
		scannedAt: at,
	}
}

// Empty returns a catalog with no packages.
func Empty() *Catalog {
	return newCatalog(nil, time.Time{})
}

func packageKey(name, version string) string {
	return name + "\x00" + version
}

// add appends pkg unless its name+version is already present, in which case
// a Duplicate diagnostic is recorded instead.
func (c *Catalog) add(pkg Package) {
	key := packageKey(pkg.Name, pkg.Version)
	if i, exists := c.index[key]; exists {
		c.diagnostics = append(c.diagnostics, Diagnostic{
			Kind: DiagnosticDuplicate,
			Path: pkg.Root,
			Message: fmt.Sprintf("%s is already provided by %s; ignoring this copy",
				pkg.Ref(), c.packages[i].Root),
		})
		return
	}
	c.index[key] = len(c.packages)
	c.packages = append(c.packages, pkg)
}

// addRegistered merges registered tools after the scanned packages. A source
// that cannot be read becomes an Unreadable diagnostic.
func (c *Catalog) addRegistered(pkgs []Package, err error) {
	if err != nil {
		c.diagnostics = append(c.diagnostics, Diagnostic{
			Kind:    DiagnosticUnreadable,
			Message: fmt.Sprintf("registered tools: %v", err),
		})
		return
	}
	for _, pkg := range pkgs {
		if pkg.Unresolved {
			c.diagnostics = append(c.diagnostics, Diagnostic{
				Kind:    DiagnosticMalformed,
				Path:    pkg.Descriptor,
				Message: fmt.Sprintf("registered tool %s has no executable file", pkg.Ref()),
			})
		}
		c.add(pkg)
	}
}

// Roots returns the repository roots the catalog was built from.
func (c *Catalog) Roots() []string {
	return append([]string(nil), c.roots...)
}

// ScannedAt returns when the scan started.
func (c *Catalog) ScannedAt() time.Time {
	return c.scannedAt
}

// Cancelled reports whether the scan stopped early.
func (c *Catalog) Cancelled() bool {
	return c.cancelled
}

// Len returns the number of packages.
func (c *Catalog) Len() int {
	return len(c.packages)
}

// Packages returns all packages in root priority order.
func (c *Catalog) Packages() []Package {
	out := make([]Package, len(c.packages))
	for i, p := range c.packages {
		out[i] = p.clone()
	}
	return out
}

// Diagnostics returns the problems found during the scan.
func (c *Catalog) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.diagnostics...)
}

// Names returns the distinct package names, sorted.
func (c *Catalog) Names() []string {
	seen := map[string]bool{}
	var names []string
	for _, p := range c.packages {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Versions returns every version of name, highest first.
func (c *Catalog) Versions(name string) []string {
	var versions []string
	for _, p := range c.packages {
		if p.Name == name {
			versions = append(versions, p.Version)
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
	return versions
}

// Lookup finds a package by name and version. An empty version selects the
// highest available version.
func (c *Catalog) Lookup(name, version string) (*Package, bool) {
	if version == "" {
		versions := c.Versions(name)
		if len(versions) == 0 {
			return nil, false
		}
		version = versions[0]
	}
	i, ok := c.index[packageKey(name, version)]
	if !ok {
		return nil, false
	}
	p := c.packages[i].clone()
	return &p, true
}

// Latest returns the highest version of each package name, in name order.
func (c *Catalog) Latest() []Package {
	var out []Package
	for _, name := range c.Names() {
		if p, ok := c.Lookup(name, ""); ok {
			out = append(out, *p)
		}
	}
	return out
}

// CompareVersions orders two version strings. Versions that parse as
// semantic versions compare by semver and rank above those that do not;
// the rest compare lexically.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
