//go:build !windows

package launch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"sotugyo/internal/catalog"
	"sotugyo/internal/events"
)

type fakeSource map[string]catalog.Package

func (f fakeSource) Lookup(name, version string) (*catalog.Package, bool) {
	for _, p := range f {
		if p.Name == name && (version == "" || p.Version == version) {
			cp := p
			return &cp, true
		}
	}
	return nil, false
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func readEventually(t *testing.T, path string, want ...string) string {
	t.Helper()
	var content string
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		content = string(data)
		for _, w := range want {
			if !strings.Contains(content, w) {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond, "log %s never contained %v", path, want)
	return content
}

func newTestCoordinator(t *testing.T, src CatalogSource, opts ...Option) (*Coordinator, string) {
	t.Helper()
	logDir := filepath.Join(t.TempDir(), "logs", "launch")
	base := []Option{WithEnviron(func() []string { return []string{"PATH=/usr/bin:/bin", "KEEP=yes"} })}
	return NewCoordinator(src, logDir, append(base, opts...)...), logDir
}

func TestLaunchUnresolvedTouchesNoLog(t *testing.T) {
	src := fakeSource{"nuke": {Name: "nuke", Version: "15", Unresolved: true, Descriptor: "/r/nuke/package.yaml"}}
	c, logDir := newTestCoordinator(t, src)

	_, err := c.Launch(context.Background(), Request{Name: "nuke"})
	var unresolved *ExecutableUnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "nuke", unresolved.Name)
	assert.NoDirExists(t, logDir)
}

func TestLaunchNotFound(t *testing.T) {
	c, logDir := newTestCoordinator(t, fakeSource{})

	_, err := c.Launch(context.Background(), Request{Name: "ghost", Version: "1"})
	var notFound *PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "package ghost-1 not found", err.Error())
	assert.NoDirExists(t, logDir)
}

func TestLaunchVanishedExecutableIsNotFound(t *testing.T) {
	root := t.TempDir()
	src := fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: filepath.Join(root, "gone")}}
	c, logDir := newTestCoordinator(t, src)

	_, err := c.Launch(context.Background(), Request{Name: "tool"})
	var notFound *PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, notFound.Reason, "no longer exists")
	assert.NoDirExists(t, logDir)
}

func TestLaunchCancelledBeforeSpawn(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "ran")
	exe := writeScript(t, root, "tool", "touch "+marker+"\n")
	c, logDir := newTestCoordinator(t, fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: exe}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Launch(ctx, Request{Name: "tool"})
	assert.ErrorIs(t, err, context.Canceled)

	time.Sleep(100 * time.Millisecond)
	assert.NoFileExists(t, marker)
	assert.NoDirExists(t, logDir)
}

func TestLaunchCapturesOutput(t *testing.T) {
	root := t.TempDir()
	exe := writeScript(t, root, "tool", `echo "out:$1:$2"
echo "err:$SOTUGYO_PACKAGE" >&2
echo "pwd:$(pwd)"
if read line; then echo "stdin:open"; else echo "stdin:eof"; fi
`)
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	src := fakeSource{"tool": {Name: "tool", Version: "1.0", Root: root, Executable: exe}}
	c, logDir := newTestCoordinator(t, src, WithPublisher(bus), WithClock(func() time.Time { return fixedTime }))

	out, err := c.Launch(context.Background(), Request{Name: "tool", Args: []string{"a", "b c"}})
	require.NoError(t, err)
	assert.True(t, out.Started)
	assert.Greater(t, out.PID, 0)
	assert.Nil(t, out.Diagnostic)
	assert.Equal(t, "tool-1.0", out.Package)
	assert.Equal(t, []string{exe, "a", "b c"}, out.Command)
	assert.Equal(t, root, out.WorkDir)
	assert.Equal(t, filepath.Join(logDir, "tool_1.0_20250314_092653.log"), out.LogPath)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	readEventually(t, out.LogPath, "out:a:b c", "err:tool", "pwd:"+resolvedRoot, "stdin:eof", "# command: "+exe)

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindLaunchOutcome, ev.Kind)
		assert.Equal(t, events.ReasonLaunchStarted, ev.Reason)
		assert.Equal(t, out, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("no launch-outcome event")
	}
}

func TestLaunchEnvironmentAndWorkDir(t *testing.T) {
	root := t.TempDir()
	project := t.TempDir()
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))
	exe := writeScript(t, root, "tool", `echo "pkgvar=$PKGVAR"
echo "override=$KEEP"
echo "rez=$REZ_PACKAGES_PATH"
echo "project=$SOTUGYO_PROJECT_ROOT"
echo "path=$PATH"
echo "pwd=$(pwd)"
`)
	src := fakeSource{"tool": {
		Name: "tool", Version: "2", Root: root, Executable: exe,
		Environment: map[string]string{"PKGVAR": "from-package", "KEEP": "package"},
		PathPrepend: []string{bin},
	}}
	c, _ := newTestCoordinator(t, src, WithPackageRoots(func() []string { return []string{"/repo/a", "/repo/b"} }))

	out, err := c.Launch(context.Background(), Request{
		Name:        "tool",
		ProjectRoot: project,
		Env:         map[string]string{"KEEP": "request"},
	})
	require.NoError(t, err)
	assert.Equal(t, project, out.WorkDir)

	resolvedProject, err := filepath.EvalSymlinks(project)
	require.NoError(t, err)
	readEventually(t, out.LogPath,
		"pkgvar=from-package",
		"override=request",
		"rez=/repo/a:/repo/b",
		"project="+project,
		"path="+bin+":/usr/bin:/bin",
		"pwd="+resolvedProject,
	)
}

func TestLaunchIsDetached(t *testing.T) {
	root := t.TempDir()
	exe := writeScript(t, root, "tool", "sleep 2\n")
	c, _ := newTestCoordinator(t, fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: exe}})

	out, err := c.Launch(context.Background(), Request{Name: "tool"})
	require.NoError(t, err)

	sid, err := unix.Getsid(out.PID)
	require.NoError(t, err)
	assert.Equal(t, out.PID, sid, "child should lead its own session")
	assert.NotEqual(t, syscall.Getpid(), sid)
}

func TestLaunchReturnsBeforeChildExits(t *testing.T) {
	root := t.TempDir()
	exe := writeScript(t, root, "tool", "sleep 5\n")
	c, _ := newTestCoordinator(t, fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: exe}})

	start := time.Now()
	_, err := c.Launch(context.Background(), Request{Name: "tool"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLaunchLoggingDegraded(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "ran")
	exe := writeScript(t, root, "tool", "touch "+marker+"\n")

	blocked := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocked, nil, 0644))

	bus := events.NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	c := NewCoordinator(fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: exe}},
		filepath.Join(blocked, "launch"), WithPublisher(bus))

	out, err := c.Launch(context.Background(), Request{Name: "tool"})
	require.NoError(t, err)
	assert.True(t, out.Started)
	assert.Empty(t, out.LogPath)
	require.NotNil(t, out.Diagnostic)
	assert.Equal(t, DiagnosticLoggingDegraded, out.Diagnostic.Kind)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	ev := <-ch
	assert.Equal(t, events.ReasonLaunchDegraded, ev.Reason)
	assert.Equal(t, events.EventTypeWarning, ev.Type)
}

func TestLaunchUniqueLogsInSameSecond(t *testing.T) {
	root := t.TempDir()
	exe := writeScript(t, root, "tool", "exit 0\n")
	src := fakeSource{"bad": {Name: `bad:name|x`, Version: "1", Root: root, Executable: exe}}
	c, logDir := newTestCoordinator(t, src, WithClock(func() time.Time { return fixedTime }))

	first, err := c.Launch(context.Background(), Request{Name: `bad:name|x`})
	require.NoError(t, err)
	second, err := c.Launch(context.Background(), Request{Name: `bad:name|x`})
	require.NoError(t, err)

	assert.NotEqual(t, first.LogPath, second.LogPath)
	assert.Equal(t, filepath.Join(logDir, "bad_name_x_1_20250314_092653.log"), first.LogPath)
	assert.Equal(t, filepath.Join(logDir, "bad_name_x_1_20250314_092653-1.log"), second.LogPath)
	for _, p := range []string{first.LogPath, second.LogPath} {
		assert.False(t, strings.ContainsAny(filepath.Base(p), `/\:*?"<>| `))
		assert.FileExists(t, p)
	}
}

func TestLaunchSpawnFailure(t *testing.T) {
	root := t.TempDir()
	exe := filepath.Join(root, "not-executable")
	require.NoError(t, os.WriteFile(exe, []byte("data"), 0644))
	c, _ := newTestCoordinator(t, fakeSource{"tool": {Name: "tool", Version: "1", Root: root, Executable: exe}})

	out, err := c.Launch(context.Background(), Request{Name: "tool"})
	var spawn *SpawnError
	require.True(t, errors.As(err, &spawn))
	assert.False(t, out.Started)
	require.NotEmpty(t, out.LogPath)
	data, readErr := os.ReadFile(out.LogPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "# failed to start")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowStreamsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var buf syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, &buf, 10*time.Millisecond)
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		return buf.String() == "first\nsecond\n"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestFollowMissingFile(t *testing.T) {
	err := Follow(context.Background(), filepath.Join(t.TempDir(), "never.log"), io.Discard, time.Millisecond)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
