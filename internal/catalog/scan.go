package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sotugyo/internal/template"
	"sotugyo/pkg/logging"
)

// Scanner builds catalogs from package repository roots.
type Scanner struct {
	engine      *template.Engine
	goos        string
	goarch      string
	concurrency int
	now         func() time.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithPlatform overrides the OS and architecture exposed to resolve templates.
func WithPlatform(goos, goarch string) ScannerOption {
	return func(s *Scanner) {
		s.goos = goos
		s.goarch = goarch
	}
}

// WithConcurrency limits how many roots are read at once.
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanner creates a scanner for the current platform.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		engine:      template.New(),
		goos:        runtime.GOOS,
		goarch:      runtime.GOARCH,
		concurrency: runtime.NumCPU(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan builds a catalog with a default scanner.
func Scan(ctx context.Context, roots []string) *Catalog {
	return NewScanner().Scan(ctx, roots)
}

// rootResult is what one repository root contributed.
type rootResult struct {
	packages    []Package
	diagnostics []Diagnostic
	cancelled   bool
}

// Scan reads every root and returns the merged catalog. Roots are read
// concurrently but merged in the order given, so the first root wins on
// duplicate name+version. Scan never fails: problems become diagnostics,
// and a cancelled context yields the packages found so far plus a
// Cancelled diagnostic.
func (s *Scanner) Scan(ctx context.Context, roots []string) *Catalog {
	start := s.now()
	results := make([]rootResult, len(roots))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, root := range roots {
		g.Go(func() error {
			results[i] = s.scanRoot(ctx, root)
			return nil
		})
	}
	_ = g.Wait()

	cat := newCatalog(roots, start)
	cancelled := false
	for _, res := range results {
		cat.diagnostics = append(cat.diagnostics, res.diagnostics...)
		for _, pkg := range res.packages {
			cat.add(pkg)
		}
		cancelled = cancelled || res.cancelled
	}
	if cancelled {
		cat.diagnostics = append(cat.diagnostics, Diagnostic{
			Kind:    DiagnosticCancelled,
			Message: fmt.Sprintf("scan cancelled: %v", ctx.Err()),
		})
		cat.cancelled = true
	}

	logging.Debug("Catalog", "Scanned %d root(s) in %s: %d package(s), %d diagnostic(s)",
		len(roots), s.now().Sub(start).Round(time.Millisecond), len(cat.packages), len(cat.diagnostics))
	return cat
}

func (s *Scanner) scanRoot(ctx context.Context, root string) rootResult {
	var res rootResult
	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Catalog", "Package root %s does not exist, skipping", root)
			return res
		}
		res.diagnostics = append(res.diagnostics, Diagnostic{
			Kind:    DiagnosticUnreadable,
			Path:    root,
			Message: fmt.Sprintf("cannot read package root: %v", err),
		})
		return res
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			res.cancelled = true
			return res
		}
		if !isCandidate(root, entry) {
			continue
		}
		candidate := filepath.Join(root, entry.Name())
		s.scanCandidate(root, candidate, &res)
	}
	return res
}

// scanCandidate handles one immediate child of a root: either a flat
// package or a directory of version directories.
func (s *Scanner) scanCandidate(repoRoot, dir string, res *rootResult) {
	if desc, ok := findDescriptor(dir); ok {
		s.loadPackage(repoRoot, dir, desc, "", res)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		res.diagnostics = append(res.diagnostics, Diagnostic{
			Kind:    DiagnosticUnreadable,
			Path:    dir,
			Message: fmt.Sprintf("cannot read candidate: %v", err),
		})
		return
	}
	for _, entry := range entries {
		if !isCandidate(dir, entry) {
			continue
		}
		versionDir := filepath.Join(dir, entry.Name())
		if desc, ok := findDescriptor(versionDir); ok {
			s.loadPackage(repoRoot, versionDir, desc, entry.Name(), res)
		}
	}
}

func isCandidate(parent string, entry os.DirEntry) bool {
	if strings.HasPrefix(entry.Name(), ".") {
		return false
	}
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink != 0 {
		info, err := os.Stat(filepath.Join(parent, entry.Name()))
		return err == nil && info.IsDir()
	}
	return false
}

func malformed(path, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: DiagnosticMalformed, Path: path, Message: fmt.Sprintf(format, args...)}
}

// loadPackage turns one descriptor into a Package. versionDir is set for
// the name/version layout and supplies defaults for name and version.
func (s *Scanner) loadPackage(repoRoot, dir, descPath, versionDir string, res *rootResult) {
	d, err := ReadDescriptor(descPath)
	if err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "%v", err))
		return
	}

	name := strings.TrimSpace(string(d.Name))
	version := strings.TrimSpace(string(d.Version))
	if name == "" {
		if versionDir != "" {
			name = filepath.Base(filepath.Dir(dir))
		} else {
			name = filepath.Base(dir)
		}
	}
	if version == "" {
		if versionDir == "" {
			res.diagnostics = append(res.diagnostics, malformed(descPath, "package %q declares no version", name))
			return
		}
		version = versionDir
	}
	if err := validName(name); err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "package name %v", err))
		return
	}
	if err := validName(version); err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "package version %v", err))
		return
	}
	if d.Resolve != nil {
		if err := d.Resolve.validate(); err != nil {
			res.diagnostics = append(res.diagnostics, malformed(descPath, "%v", err))
			return
		}
	}

	vars, err := s.packageVars(d, dir, name, version)
	if err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "%v", err))
		return
	}
	env, err := s.engine.ExpandMap(d.Environment, vars)
	if err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "environment: %v", err))
		return
	}
	prepend, err := s.engine.ExpandList(d.Path, vars)
	if err != nil {
		res.diagnostics = append(res.diagnostics, malformed(descPath, "path: %v", err))
		return
	}

	pkg := Package{
		Name:           name,
		Version:        version,
		Description:    d.Description,
		Root:           dir,
		RepositoryRoot: repoRoot,
		Descriptor:     descPath,
		Tools:          d.Tools,
		Environment:    env,
	}
	if len(pkg.Environment) == 0 {
		pkg.Environment = nil
	}

	for _, expanded := range prepend {
		p, err := contained(dir, expanded)
		if err != nil {
			res.diagnostics = append(res.diagnostics, malformed(descPath, "path: %v", err))
			return
		}
		if p != "" {
			pkg.PathPrepend = append(pkg.PathPrepend, p)
		}
	}

	exe, by, err := s.resolveExecutable(d, &pkg, vars)
	if err != nil {
		// The package stays visible; it just cannot be launched.
		res.diagnostics = append(res.diagnostics, malformed(descPath, "%v", err))
	}
	if exe == "" {
		pkg.Unresolved = true
	} else {
		pkg.Executable = exe
		pkg.ResolvedBy = by
	}

	res.packages = append(res.packages, pkg)
}

// packageVars builds the placeholder context of a package: the descriptor's
// own vars expanded once against root, name and version, then those three on
// top. Every placeholder used by environment and path must be known.
func (s *Scanner) packageVars(d *Descriptor, dir, name, version string) (map[string]interface{}, error) {
	builtin := template.PackageContext(dir, name, version)
	own, err := s.engine.Replace(d.Vars, builtin)
	if err != nil {
		return nil, fmt.Errorf("vars: %w", err)
	}
	vars := template.MergeContexts(own.(map[string]interface{}), builtin)
	used := map[string]interface{}{"environment": d.Environment, "path": d.Path}
	if err := s.engine.ValidateContext(used, vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// resolveExecutable applies the resolution policy: an explicit executable
// that exists, else the resolve hint's result if it exists, else nothing.
func (s *Scanner) resolveExecutable(d *Descriptor, pkg *Package, vars map[string]interface{}) (string, Resolution, error) {
	if strings.TrimSpace(d.Executable) != "" {
		p, err := contained(pkg.Root, d.Executable)
		if err != nil {
			return "", "", fmt.Errorf("executable: %w", err)
		}
		if isRegularFile(p) {
			return p, ResolvedExplicit, nil
		}
		logging.Debug("Catalog", "Declared executable %s of %s does not exist", p, pkg.Ref())
	}

	if d.Resolve == nil {
		return "", "", nil
	}

	var (
		candidate string
		by        Resolution
		err       error
	)
	switch {
	case strings.TrimSpace(d.Resolve.Template) != "":
		by = ResolvedTemplate
		candidate, err = evalTemplate(d.Resolve.Template, hintData{
			Name:    pkg.Name,
			Version: pkg.Version,
			OS:      s.goos,
			Arch:    s.goarch,
			Root:    pkg.Root,
			Vars:    vars,
		})
	case strings.TrimSpace(d.Resolve.Glob) != "":
		by = ResolvedGlob
		candidate, err = evalGlob(pkg.Root, d.Resolve.Glob)
	default:
		by = ResolvedEnv
		key := strings.TrimSpace(d.Resolve.Env)
		v, ok := pkg.Environment[key]
		if !ok {
			return "", "", fmt.Errorf("resolve env key %q is not in environment", key)
		}
		candidate = v
	}
	if err != nil {
		return "", "", err
	}

	p, err := contained(pkg.Root, candidate)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", by, err)
	}
	if p == "" || !isRegularFile(p) {
		return "", "", nil
	}
	return p, by, nil
}
