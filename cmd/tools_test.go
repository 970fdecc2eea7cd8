package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sotugyo/internal/catalog"
)

func writePackages(t *testing.T, root string) {
	t.Helper()
	writeTestFile(t, filepath.Join(root, "blender", "4.1", "package.yaml"), `
name: blender
version: "4.1"
executable: bin/blender
`, 0644)
	writeTestFile(t, filepath.Join(root, "blender", "4.1", "bin", "blender"), "#!/bin/sh\n", 0755)
	writeTestFile(t, filepath.Join(root, "blender", "4.2", "package.yaml"), `
name: blender
version: "4.2"
description: "# Blender\nOpen source 3D suite."
executable: bin/blender
tools: [blender]
`, 0644)
	writeTestFile(t, filepath.Join(root, "blender", "4.2", "bin", "blender"), "#!/bin/sh\n", 0755)
	writeTestFile(t, filepath.Join(root, "nuke", "package.yaml"), `
name: nuke
version: "15.1"
resolve:
  template: "{{ .Root }}/bin/Nuke{{ .Version }}"
`, 0644)
}

func TestToolsListLatestAndAll(t *testing.T) {
	env := newCLIEnv(t)
	writePackages(t, env.packageRoot())

	var latest []catalog.Package
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("tools", "list", "-o", "json")), &latest))
	require.Len(t, latest, 2)
	assert.Equal(t, "blender", latest[0].Name)
	assert.Equal(t, "4.2", latest[0].Version)
	assert.Equal(t, "nuke", latest[1].Name)
	assert.True(t, latest[1].Unresolved)

	var all []catalog.Package
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("tools", "list", "--all", "-o", "json")), &all))
	assert.Len(t, all, 3)

	table := env.mustRun("tools", "list")
	assert.Contains(t, table, "unresolved")
	assert.Contains(t, table, "ready")
	assert.Contains(t, table, "Open source 3D suite.")
}

func TestToolsListEmptyCatalog(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun("tools", "list", "-o", "json")
	assert.JSONEq(t, "[]", out)
}

func TestToolsShow(t *testing.T) {
	env := newCLIEnv(t)
	writePackages(t, env.packageRoot())

	out := env.mustRun("tools", "show", "blender")
	assert.Contains(t, out, "4.2")
	assert.Contains(t, out, "4.1")
	assert.Contains(t, out, "Open source 3D suite.")

	var pkg catalog.Package
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("tools", "show", "blender", "4.1", "-o", "json")), &pkg))
	assert.Equal(t, "4.1", pkg.Version)
	assert.Equal(t, filepath.Join(env.packageRoot(), "blender", "4.1", "bin", "blender"), pkg.Executable)
}

func TestToolsShowNotFound(t *testing.T) {
	env := newCLIEnv(t)
	writePackages(t, env.packageRoot())

	_, _, err := env.run("tools", "show", "blender", "9.9")
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))
	assert.Contains(t, err.Error(), "4.2, 4.1")
}

func TestToolsScanReportsDiagnostics(t *testing.T) {
	env := newCLIEnv(t)
	writePackages(t, env.packageRoot())
	writeTestFile(t, filepath.Join(env.packageRoot(), "broken", "package.yaml"), "name: [not, a, name\n", 0644)

	var summary struct {
		Packages    int                  `json:"packages"`
		Diagnostics []catalog.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("tools", "scan", "-o", "json")), &summary))
	assert.Equal(t, 3, summary.Packages)
	require.Len(t, summary.Diagnostics, 1)
	assert.Equal(t, catalog.DiagnosticMalformed, summary.Diagnostics[0].Kind)

	out := env.mustRun("tools", "scan")
	assert.Contains(t, out, "Found 3 package(s)")
	assert.Contains(t, out, "Malformed")
}

func TestToolsLogsPrune(t *testing.T) {
	env := newCLIEnv(t)
	logDir := filepath.Join(env.configDir, "logs", "launch")
	names := []string{
		"blender_4.2_20260101_100000.log",
		"blender_4.2_20260102_100000.log",
		"blender_4.2_20260103_100000.log",
		"notes.txt",
	}
	for _, n := range names {
		writeTestFile(t, filepath.Join(logDir, n), "", 0644)
	}

	var removed []string
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("tools", "logs", "prune", "--keep", "1", "-o", "json")), &removed))
	assert.Len(t, removed, 2)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"blender_4.2_20260103_100000.log", "notes.txt"}, left)

	out := env.mustRun("tools", "logs", "prune")
	assert.Contains(t, out, "Removed 0 log file(s)")
}
