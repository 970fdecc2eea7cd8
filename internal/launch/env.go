package launch

import (
	"os"
	"runtime"
	"sort"
	"strings"

	"sotugyo/internal/catalog"
)

// Environment variables set for every launched tool.
const (
	EnvPackagesPath   = "REZ_PACKAGES_PATH"
	EnvProjectRoot    = "SOTUGYO_PROJECT_ROOT"
	EnvPackageName    = "SOTUGYO_PACKAGE"
	EnvPackageVersion = "SOTUGYO_PACKAGE_VERSION"
	EnvPackageRoot    = "SOTUGYO_PACKAGE_ROOT"
)

// envList is an ordered KEY=VALUE list with replace-in-place semantics.
type envList struct {
	entries  []string
	foldCase bool
	listSep  string
}

func newEnvList(base []string, goos string) *envList {
	return &envList{
		entries:  append([]string(nil), base...),
		foldCase: goos == "windows",
		listSep:  string(os.PathListSeparator),
	}
}

func (l *envList) index(key string) int {
	for i, kv := range l.entries {
		k, _, _ := strings.Cut(kv, "=")
		if k == key || (l.foldCase && strings.EqualFold(k, key)) {
			return i
		}
	}
	return -1
}

func (l *envList) get(key string) string {
	if i := l.index(key); i >= 0 {
		_, v, _ := strings.Cut(l.entries[i], "=")
		return v
	}
	return ""
}

func (l *envList) set(key, value string) {
	kv := key + "=" + value
	if i := l.index(key); i >= 0 {
		l.entries[i] = kv
		return
	}
	l.entries = append(l.entries, kv)
}

// prepend puts dirs in front of the list variable key, dropping any later
// duplicates.
func (l *envList) prepend(key string, dirs []string) {
	if len(dirs) == 0 {
		return
	}
	parts := append([]string(nil), dirs...)
	if cur := l.get(key); cur != "" {
		parts = append(parts, strings.Split(cur, l.listSep)...)
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		k := p
		if l.foldCase {
			k = strings.ToLower(p)
		}
		if p == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	l.set(key, strings.Join(out, l.listSep))
}

// buildEnv assembles the child environment. Later layers win: the base
// environment, the package environment, search paths, project and package
// markers, then the request's own overrides.
func buildEnv(base []string, pkg *catalog.Package, roots []string, projectRoot string, overrides map[string]string) []string {
	env := newEnvList(base, runtime.GOOS)

	for _, k := range sortedKeys(pkg.Environment) {
		env.set(k, pkg.Environment[k])
	}
	env.prepend("PATH", pkg.PathPrepend)
	env.prepend(EnvPackagesPath, roots)

	if projectRoot != "" {
		env.set(EnvProjectRoot, projectRoot)
	}
	env.set(EnvPackageName, pkg.Name)
	env.set(EnvPackageVersion, pkg.Version)
	env.set(EnvPackageRoot, pkg.Root)

	for _, k := range sortedKeys(overrides) {
		env.set(k, overrides[k])
	}
	return env.entries
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
