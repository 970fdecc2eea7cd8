package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sotugyo/internal/catalog"
	"sotugyo/internal/events"
	"sotugyo/internal/registry"
	"sotugyo/internal/settings"
	"sotugyo/internal/structure"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventReason
}

func (r *recordingPublisher) Emit(_ events.Kind, reason events.EventReason, _ events.EventData, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, reason)
}

func (r *recordingPublisher) reasons() []events.EventReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventReason(nil), r.events...)
}

type staticCatalog struct{ cat *catalog.Catalog }

func (s staticCatalog) Current() *catalog.Catalog { return s.cat }

var testPolicy = structure.Policy{
	{Path: "assets", Kind: structure.KindDir},
	{Path: "shots", Kind: structure.KindDir},
	{Path: "cache", Kind: structure.KindDir},
	{Path: "config/project_settings.json", Kind: structure.KindFile, Content: "{}\n"},
}

type fixture struct {
	svc      *Service
	pub      *recordingPublisher
	registry *registry.Registry
	dir      string
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "projects.yaml"))
	st, err := structure.NewService(testPolicy)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	return fixture{
		svc:      NewService(reg, st, settings.NewRepository(), opts...),
		pub:      pub,
		registry: reg,
		dir:      dir,
	}
}

func TestRegisterWithEnsure(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "projects", "alpha")

	result, err := f.svc.Register("Alpha", root, true)
	require.NoError(t, err)
	require.NotNil(t, result.Project)
	assert.True(t, result.OK(), result.Summary())
	assert.Len(t, result.Created, 4)
	assert.DirExists(t, filepath.Join(root, "shots"))

	assert.Equal(t, []events.EventReason{
		events.ReasonStructureRepaired,
		events.ReasonProjectRegistered,
		events.ReasonStructureValid,
	}, f.pub.reasons())

	projects, err := f.svc.Projects()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Alpha", projects[0].Name)
}

func TestRegisterWithoutEnsureReportsMissingEntries(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "beta")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0755))

	result, err := f.svc.Register("Beta", root, false)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.False(t, result.NeedsDecision())
	assert.Len(t, result.Filter(AutoResolvable), 3)
	assert.NoDirExists(t, filepath.Join(root, "shots"), "registering without ensure must not create entries")

	repaired, err := f.svc.Repair(result.Project.ID)
	require.NoError(t, err)
	assert.True(t, repaired.OK(), repaired.Summary())
	assert.Len(t, repaired.Created, 3)
	assert.Contains(t, f.pub.reasons(), events.ReasonStructureRepaired)
}

func TestRegisterRejectsRelativeAndMissingRoots(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Register("Rel", "relative/root", true)
	var pathErr *registry.InvalidPathError
	require.True(t, errors.As(err, &pathErr))
	assert.True(t, result.NeedsDecision())

	_, err = f.svc.Register("Missing", filepath.Join(f.dir, "nope"), false)
	require.True(t, errors.As(err, &pathErr))

	projects, err := f.svc.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRegisterEnsureDuplicateDoesNotTouchRoot(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "gamma")
	require.NoError(t, os.MkdirAll(root, 0755))

	_, err := f.svc.Register("Gamma", root, false)
	require.NoError(t, err)

	_, err = f.svc.Register("Gamma again", root, true)
	var dup *registry.DuplicatePathError
	require.True(t, errors.As(err, &dup))
	assert.NoDirExists(t, filepath.Join(root, "assets"))
}

func TestRegisterEnsureInvalidNameDoesNotCreateRoot(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "epsilon")

	for _, name := range []string{"", "   "} {
		result, err := f.svc.Register(name, root, true)
		var nameErr *registry.InvalidNameError
		require.True(t, errors.As(err, &nameErr), "name %q", name)
		assert.Nil(t, result.Project)
		assert.Empty(t, result.Created)
		assert.NoDirExists(t, root)
	}
	assert.NotContains(t, f.pub.reasons(), events.ReasonStructureRepaired)
}

func TestRegisterEnsureConflictStopsRegistration(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "delta")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shots"), []byte("not a dir"), 0644))

	result, err := f.svc.Register("Delta", root, true)
	var conflict *structure.StructureConflictError
	require.True(t, errors.As(err, &conflict))
	assert.True(t, result.NeedsDecision())
	assert.Nil(t, result.Project)
	assert.Contains(t, f.pub.reasons(), events.ReasonStructureConflict)

	projects, err := f.svc.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestCheckAndRepairLeaveConflictsToUser(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "eps")
	require.NoError(t, os.MkdirAll(root, 0755))

	reg, err := f.svc.Register("Eps", root, false)
	require.NoError(t, err)
	id := reg.Project.ID

	require.NoError(t, os.WriteFile(filepath.Join(root, "assets"), []byte("x"), 0644))

	check, err := f.svc.Check(id)
	require.NoError(t, err)
	assert.True(t, check.NeedsDecision())
	conflicts := check.Filter(NeedsDecision)
	require.Len(t, conflicts, 1)
	assert.Equal(t, IssueStructureConflict, conflicts[0].Kind)

	repaired, err := f.svc.Repair(id)
	require.NoError(t, err)
	assert.True(t, repaired.NeedsDecision())
	data, err := os.ReadFile(filepath.Join(root, "assets"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data), "conflicting file must be left alone")
}

func TestRootMissingNeedsDecision(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "zeta")
	reg, err := f.svc.Register("Zeta", root, true)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	check, err := f.svc.Check(reg.Project.ID)
	require.NoError(t, err)
	require.Len(t, check.Issues, 1)
	assert.Equal(t, IssueRootMissing, check.Issues[0].Kind)
	assert.Equal(t, NeedsDecision, check.Issues[0].Disposition)

	repaired, err := f.svc.Repair(reg.Project.ID)
	require.NoError(t, err)
	assert.True(t, repaired.NeedsDecision())
	assert.NoDirExists(t, root, "repair must not recreate a vanished root")
}

func TestSelectionLifecycle(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "alpha")

	reg, err := f.svc.Register("Alpha", root, true)
	require.NoError(t, err)
	id := reg.Project.ID

	current, err := f.svc.Current()
	require.NoError(t, err)
	assert.Nil(t, current)

	selected, err := f.svc.Select(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", selected.Name)

	require.NoError(t, f.svc.Rename(id, "Alpha Prime"))
	current, err = f.svc.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Alpha Prime", current.Name)

	require.NoError(t, f.svc.Unregister(id))
	current, err = f.svc.Current()
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = f.svc.Select(id)
	var notFound *registry.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	reasons := f.pub.reasons()
	assert.Contains(t, reasons, events.ReasonProjectSelected)
	assert.Contains(t, reasons, events.ReasonProjectRenamed)
	assert.Contains(t, reasons, events.ReasonProjectUnregistered)
}

func TestSettingsThroughService(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "eta")
	reg, err := f.svc.Register("Eta", root, true)
	require.NoError(t, err)
	id := reg.Project.ID

	require.NoError(t, os.WriteFile(settings.PathFor(root), []byte(`{"custom": {"keep": true}}`), 0644))

	st, err := f.svc.LoadSettings(id)
	require.NoError(t, err)
	st.SetDescription("hero shots")
	require.NoError(t, f.svc.SaveSettings(id, st))

	again, err := f.svc.LoadSettings(id)
	require.NoError(t, err)
	assert.Equal(t, "hero shots", again.Description())
	assert.Equal(t, map[string]interface{}{"keep": true}, again.Extra()["custom"])

	other, err := settings.NewRepository().Load(f.dir)
	require.NoError(t, err)
	assert.Error(t, f.svc.SaveSettings(id, other))

	_, err = f.svc.LoadSettings("missing")
	var notFound *registry.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestCorruptRegistryIsAnIssue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.registry.Path(), []byte("projects: [\n"), 0644))

	projects, err := f.svc.Projects()
	require.NoError(t, err)
	assert.Empty(t, projects)

	issues := f.svc.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, IssueRegistryCorrupt, issues[0].Kind)
	assert.Equal(t, NeedsDecision, issues[0].Disposition)
}

func TestCheckReportsUnresolvedPackages(t *testing.T) {
	pkgRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(pkgRoot, "nuke"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "nuke", "package.yaml"), []byte(`
name: nuke
version: "15.1"
resolve:
  template: "{{ .Root }}/bin/Nuke{{ .Version }}"
`), 0644))
	cat := catalog.Scan(context.Background(), []string{pkgRoot})

	f := newFixture(t, WithCatalog(staticCatalog{cat: cat}))
	reg, err := f.svc.Register("Theta", filepath.Join(f.dir, "theta"), true)
	require.NoError(t, err)

	check, err := f.svc.Check(reg.Project.ID)
	require.NoError(t, err)
	require.True(t, check.NeedsDecision())
	assert.Equal(t, IssueExecutableUnresolved, check.Filter(NeedsDecision)[0].Kind)
	assert.Contains(t, check.Summary(), "1 needsdecision")
}
