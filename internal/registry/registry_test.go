package registry

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, string) {
	t.Helper()

	dir := t.TempDir()
	counter := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		}),
	}
	return New(filepath.Join(dir, "cfg", "projects.yaml"), append(base, opts...)...), dir
}

func makeRoot(t *testing.T, base, name string) string {
	t.Helper()
	root := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(root, 0755))
	return root
}

func TestListEmpty(t *testing.T) {
	r, _ := newTestRegistry(t)

	projects, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, projects)

	last, err := r.LastSelected()
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.Empty(t, r.Warnings())
}

func TestRegisterUnregisterScenario(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")

	p, err := r.Register("Alpha", root)
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, fixedNow, p.CreatedAt)

	projects, err := r.List()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Alpha", projects[0].Name)

	require.NoError(t, r.Select(p.ID))
	last, err := r.LastSelected()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, p.ID, last.ID)

	require.NoError(t, r.Unregister(p.ID))

	projects, err = r.List()
	require.NoError(t, err)
	assert.Empty(t, projects)

	last, err = r.LastSelected()
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRegisterValidation(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		pname   string
		root    string
		wantErr interface{}
	}{
		{"relative root", "A", "relative/path", &InvalidPathError{}},
		{"empty root", "A", "", &InvalidPathError{}},
		{"missing root", "A", filepath.Join(dir, "missing"), &InvalidPathError{}},
		{"file root", "A", file, &InvalidPathError{}},
		{"blank name", "  ", root, &InvalidNameError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.pname, tt.root)
			require.Error(t, err)
			switch tt.wantErr.(type) {
			case *InvalidPathError:
				var target *InvalidPathError
				assert.True(t, errors.As(err, &target), "got %T", err)
			case *InvalidNameError:
				var target *InvalidNameError
				assert.True(t, errors.As(err, &target), "got %T", err)
			}
		})
	}

	projects, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRegisterDuplicatePath(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")

	_, err := r.Register("Alpha", root)
	require.NoError(t, err)

	_, err = r.Register("Other", root+string(filepath.Separator))
	var dup *DuplicatePathError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "Alpha", dup.Existing.Name)
}

func TestSelectNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Select("nope")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.ID)
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")
	p, err := r.Register("Alpha", root)
	require.NoError(t, err)
	require.NoError(t, r.Select(p.ID))

	require.NoError(t, r.Unregister("unknown"))

	last, err := r.LastSelected()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, p.ID, last.ID)
}

func TestRename(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")
	p, err := r.Register("Alpha", root)
	require.NoError(t, err)

	require.NoError(t, r.Rename(p.ID, "Alpha Prime"))
	got, err := r.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", got.Name)
	assert.Equal(t, root, got.Root)

	var nf *NotFoundError
	assert.True(t, errors.As(r.Rename("missing", "x"), &nf))
}

func TestMutationsPersistAcrossInstances(t *testing.T) {
	r, dir := newTestRegistry(t)
	alpha := makeRoot(t, dir, "alpha")
	beta := makeRoot(t, dir, "beta")

	a, err := r.Register("Alpha", alpha)
	require.NoError(t, err)
	b, err := r.Register("Beta", beta)
	require.NoError(t, err)
	require.NoError(t, r.Select(b.ID))

	reopened := New(r.Path())
	projects, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, a.ID, projects[0].ID)
	assert.Equal(t, b.ID, projects[1].ID)

	last, err := reopened.LastSelected()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "Beta", last.Name)
}

func TestCorruptDocument(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.Path()), 0755))
	require.NoError(t, os.WriteFile(r.Path(), []byte("projects: [\n  - {id: "), 0644))

	projects, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, projects)

	warnings := r.Warnings()
	require.Len(t, warnings, 1)
	var corrupt *RegistryCorruptWarning
	require.True(t, errors.As(warnings[0], &corrupt))
	assert.NotEmpty(t, corrupt.MovedTo)

	moved, err := os.ReadFile(corrupt.MovedTo)
	require.NoError(t, err)
	assert.Contains(t, string(moved), "projects")

	// The registry stays usable.
	_, err = os.Stat(r.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestUnreadableDocumentIsNeverOverwritten(t *testing.T) {
	r, dir := newTestRegistry(t)
	root := makeRoot(t, dir, "alpha")

	// A directory in place of the document cannot be read by any user.
	require.NoError(t, os.MkdirAll(r.Path(), 0755))
	keep := filepath.Join(r.Path(), "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("precious"), 0644))

	projects, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, projects)
	require.Len(t, r.Warnings(), 1)

	_, err = r.Register("Alpha", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable registry")
	assert.Error(t, r.Select("id-1"))
	assert.Error(t, r.Unregister("id-1"))

	info, err := os.Stat(r.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	data, err := os.ReadFile(keep)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(data))
	assert.Len(t, r.Warnings(), 1)
}

func TestUnknownFieldsAndDanglingSelection(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.Path()), 0755))
	doc := `schemaVersion: 3
lastSelected: gone
futureSetting: true
projects:
  - id: p1
    name: Alpha
    root: /projects/alpha
    createdAt: 2024-03-01T12:30:00Z
    color: red
`
	require.NoError(t, os.WriteFile(r.Path(), []byte(doc), 0644))

	projects, err := r.List()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID)

	last, err := r.LastSelected()
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.Empty(t, r.Warnings())
}

func TestLegacyImport(t *testing.T) {
	dir := t.TempDir()
	alpha := makeRoot(t, dir, "alpha")
	beta := makeRoot(t, dir, "beta")
	legacy := filepath.Join(dir, "cfg", "projects.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0755))
	payload := fmt.Sprintf(`{"records": [{"name": "Alpha", "root": %q}, {"name": "", "root": %q}, {"name": "Broken", "root": ""}], "last_project": %q}`,
		alpha, beta, beta)
	require.NoError(t, os.WriteFile(legacy, []byte(payload), 0644))

	counter := 0
	r := New(filepath.Join(dir, "cfg", "projects.yaml"),
		WithLegacyPath(legacy),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { counter++; return fmt.Sprintf("legacy-%d", counter) }),
	)

	projects, err := r.List()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Alpha", projects[0].Name)
	assert.Equal(t, "beta", projects[1].Name)
	assert.Equal(t, fixedNow, projects[0].CreatedAt)

	last, err := r.LastSelected()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, beta, last.Root)

	// The import is persisted in the current format and the legacy file is backed up.
	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "schemaVersion: 1")

	entries, err := os.ReadDir(filepath.Dir(legacy))
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "projects.json.backup.v0.") {
			backups++
		}
	}
	assert.Equal(t, 1, backups)
}

// For any sequence of register, unregister and select calls the last
// selected project is always one that List returns.
func TestLastSelectedNeverDangles(t *testing.T) {
	r, dir := newTestRegistry(t)
	roots := make([]string, 5)
	for i := range roots {
		roots[i] = makeRoot(t, dir, fmt.Sprintf("p%d", i))
	}

	rng := rand.New(rand.NewSource(42))
	registered := map[string]string{} // root -> id

	for step := 0; step < 200; step++ {
		root := roots[rng.Intn(len(roots))]
		switch rng.Intn(3) {
		case 0:
			p, err := r.Register("P", root)
			if err == nil {
				registered[root] = p.ID
			} else {
				var dup *DuplicatePathError
				require.True(t, errors.As(err, &dup))
			}
		case 1:
			require.NoError(t, r.Unregister(registered[root]))
			delete(registered, root)
		case 2:
			err := r.Select(registered[root])
			if _, ok := registered[root]; !ok {
				var nf *NotFoundError
				require.True(t, errors.As(err, &nf))
			} else {
				require.NoError(t, err)
			}
		}

		projects, err := r.List()
		require.NoError(t, err)
		last, err := r.LastSelected()
		require.NoError(t, err)
		if last == nil {
			continue
		}
		found := false
		for _, p := range projects {
			if p.ID == last.ID {
				found = true
			}
		}
		require.True(t, found, "step %d: last selected %s not listed", step, last.ID)
	}
}
