package catalog

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
}

func diagnosticsOf(cat *Catalog, kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range cat.Diagnostics() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func TestScanFlatAndVersionedLayouts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "blender", "package.yaml"), `
name: blender
version: "4.2"
description: "# Blender\nOpen source 3D."
executable: bin/blender
tools: [blender]
`)
	writeFile(t, filepath.Join(root, "blender", "bin", "blender"), "#!/bin/sh\n")

	writeFile(t, filepath.Join(root, "houdini", "20.5.410", "package.json"), `{"executable": "bin/houdini"}`)
	writeFile(t, filepath.Join(root, "houdini", "20.5.410", "bin", "houdini"), "")
	writeFile(t, filepath.Join(root, "houdini", "21.0.440", "package.yml"), "executable: bin/houdini\n")
	writeFile(t, filepath.Join(root, "houdini", "21.0.440", "bin", "houdini"), "")

	// Not a package: no descriptor anywhere.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes", "misc"), 0755))
	// Hidden directories are ignored.
	writeFile(t, filepath.Join(root, ".trash", "package.yaml"), "name: trash\nversion: '1'\n")

	cat := Scan(context.Background(), []string{root})
	assert.Empty(t, cat.Diagnostics())
	require.Equal(t, 3, cat.Len())

	pkgs := cat.Packages()
	assert.Equal(t, "blender", pkgs[0].Name)
	assert.Equal(t, "4.2", pkgs[0].Version)
	assert.Equal(t, filepath.Join(root, "blender", "bin", "blender"), pkgs[0].Executable)
	assert.Equal(t, ResolvedExplicit, pkgs[0].ResolvedBy)
	assert.Equal(t, []string{"blender"}, pkgs[0].Tools)
	assert.Contains(t, pkgs[0].Description, "Open source 3D.")

	assert.Equal(t, "houdini", pkgs[1].Name)
	assert.Equal(t, "20.5.410", pkgs[1].Version)
	assert.Equal(t, "21.0.440", pkgs[2].Version)
	assert.Equal(t, root, pkgs[1].RepositoryRoot)

	assert.Equal(t, []string{"blender", "houdini"}, cat.Names())
}

func TestScanUnresolvedPackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "nuke", "package.yaml"), `
name: nuke
version: "15.1"
resolve:
  template: "{{ .Root }}/bin/Nuke{{ .Version }}"
`)

	cat := Scan(context.Background(), []string{root})
	assert.Empty(t, cat.Diagnostics())

	pkg, ok := cat.Lookup("nuke", "15.1")
	require.True(t, ok)
	assert.True(t, pkg.Unresolved)
	assert.Empty(t, pkg.Executable)
}

func TestScanMissingExplicitFallsBackToHint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "krita", "package.yaml"), `
name: krita
version: "5"
executable: bin/missing
resolve:
  glob: "app/krita-*"
`)
	writeFile(t, filepath.Join(root, "krita", "app", "krita-5.1"), "")
	writeFile(t, filepath.Join(root, "krita", "app", "krita-5.2"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "krita", "app", "krita-9-dir"), 0755))

	cat := Scan(context.Background(), []string{root})
	pkg, ok := cat.Lookup("krita", "5")
	require.True(t, ok)
	assert.False(t, pkg.Unresolved)
	assert.Equal(t, ResolvedGlob, pkg.ResolvedBy)
	assert.Equal(t, filepath.Join(root, "krita", "app", "krita-5.2"), pkg.Executable)
}

func TestScanTemplateHint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "maya", "2025", "package.yaml"), `
resolve:
  template: |
    {{ if eq .OS "windows" }}bin/maya.exe{{ else }}bin/{{ .Name | lower }}{{ end }}
`)
	writeFile(t, filepath.Join(root, "maya", "2025", "bin", "maya"), "")
	writeFile(t, filepath.Join(root, "maya", "2025", "bin", "maya.exe"), "")

	cat := NewScanner(WithPlatform("linux", "amd64")).Scan(context.Background(), []string{root})
	pkg, ok := cat.Lookup("maya", "2025")
	require.True(t, ok)
	assert.Equal(t, ResolvedTemplate, pkg.ResolvedBy)
	assert.Equal(t, filepath.Join(root, "maya", "2025", "bin", "maya"), pkg.Executable)

	cat = NewScanner(WithPlatform("windows", "amd64")).Scan(context.Background(), []string{root})
	pkg, ok = cat.Lookup("maya", "2025")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "maya", "2025", "bin", "maya.exe"), pkg.Executable)
}

func TestScanEnvHintAndEnvironmentExpansion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "after_effects", "2025", "package.yaml"), `
environment:
  AE_ROOT: "{{ root }}"
  AFTER_EFFECTS_EXE: "{{ root }}/Support Files/AfterFX"
  AE_LABEL: "{{ name }}-{{ version }}"
path: ["{{ root }}/Support Files", "scripts"]
resolve:
  env: AFTER_EFFECTS_EXE
`)
	pkgRoot := filepath.Join(root, "after_effects", "2025")
	writeFile(t, filepath.Join(pkgRoot, "Support Files", "AfterFX"), "")

	cat := Scan(context.Background(), []string{root})
	require.Empty(t, cat.Diagnostics())
	pkg, ok := cat.Lookup("after_effects", "")
	require.True(t, ok)
	assert.Equal(t, ResolvedEnv, pkg.ResolvedBy)
	assert.Equal(t, filepath.Join(pkgRoot, "Support Files", "AfterFX"), pkg.Executable)
	assert.Equal(t, pkgRoot, pkg.Environment["AE_ROOT"])
	assert.Equal(t, "after_effects-2025", pkg.Environment["AE_LABEL"])
	assert.Equal(t, []string{
		filepath.Join(pkgRoot, "Support Files"),
		filepath.Join(pkgRoot, "scripts"),
	}, pkg.PathPrepend)
}

func TestScanDescriptorVars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "houdini", "20.5", "package.yaml"), `
vars:
  major: 20
  install: "{{ root }}/hfs{{ version }}"
  name: shadowed
environment:
  HFS: "{{ install }}"
  HOUDINI_MAJOR_RELEASE: "{{ major }}"
  LABEL: "{{ name }}"
path: ["{{ install }}/bin"]
resolve:
  template: "hfs{{ .Version }}/bin/houdini{{ .Vars.major }}"
`)
	pkgRoot := filepath.Join(root, "houdini", "20.5")
	writeFile(t, filepath.Join(pkgRoot, "hfs20.5", "bin", "houdini20"), "")

	cat := Scan(context.Background(), []string{root})
	require.Empty(t, cat.Diagnostics())
	pkg, ok := cat.Lookup("houdini", "20.5")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(pkgRoot, "hfs20.5"), pkg.Environment["HFS"])
	assert.Equal(t, "20", pkg.Environment["HOUDINI_MAJOR_RELEASE"])
	assert.Equal(t, "houdini", pkg.Environment["LABEL"], "vars cannot override builtins")
	assert.Equal(t, []string{filepath.Join(pkgRoot, "hfs20.5", "bin")}, pkg.PathPrepend)
	assert.Equal(t, ResolvedTemplate, pkg.ResolvedBy)
	assert.Equal(t, filepath.Join(pkgRoot, "hfs20.5", "bin", "houdini20"), pkg.Executable)
}

func TestScanUnknownPlaceholdersAreReportedTogether(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "nuke", "package.yaml"), `
version: "15"
vars: {base: "{{ root }}/{{ missing_in_vars }}"}
`)
	writeFile(t, filepath.Join(root, "katana", "package.yaml"), `
version: "7"
environment: {A: "{{ alpha }}"}
path: ["{{ beta }}"]
`)

	cat := Scan(context.Background(), []string{root})
	assert.Equal(t, 0, cat.Len())
	diags := diagnosticsOf(cat, DiagnosticMalformed)
	require.Len(t, diags, 2)
	var messages []string
	for _, d := range diags {
		messages = append(messages, d.Message)
	}
	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "missing template variables: alpha, beta")
	assert.Contains(t, joined, "vars: error in key 'base': missing template variables: missing_in_vars")
}

func TestScanHintEscapingRootIsMalformed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "evil", "package.yaml"), `
name: evil
version: "1"
resolve:
  template: "../../outside"
`)
	writeFile(t, filepath.Join(root, "outside"), "")

	cat := Scan(context.Background(), []string{root})
	pkg, ok := cat.Lookup("evil", "1")
	require.True(t, ok, "package stays visible")
	assert.True(t, pkg.Unresolved)

	diags := diagnosticsOf(cat, DiagnosticMalformed)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "escapes package root")
}

func TestScanMalformedDescriptorsDoNotStopScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_broken", "package.yaml"), "name: [unterminated\n")
	writeFile(t, filepath.Join(root, "b_noversion", "package.yaml"), "name: noversion\n")
	writeFile(t, filepath.Join(root, "c_twohints", "package.yaml"), "version: '1'\nresolve: {glob: 'x', env: 'Y'}\n")
	writeFile(t, filepath.Join(root, "d_badenv", "package.yaml"), "version: '1'\nenvironment: {X: '{{ nope }}'}\n")
	writeFile(t, filepath.Join(root, "e_good", "package.yaml"), "version: '1'\n")

	cat := Scan(context.Background(), []string{root})
	assert.Len(t, diagnosticsOf(cat, DiagnosticMalformed), 4)
	require.Equal(t, 1, cat.Len())
	assert.Equal(t, "e_good", cat.Packages()[0].Name)
	assert.True(t, cat.Packages()[0].Unresolved)
}

func TestScanNumericVersion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photoshop", "package.yaml"), "version: 2024\n")

	cat := Scan(context.Background(), []string{root})
	_, ok := cat.Lookup("photoshop", "2024")
	assert.True(t, ok)
}

func TestScanDuplicatesKeepFirstByPriority(t *testing.T) {
	primary := t.TempDir()
	secondary := t.TempDir()
	writeFile(t, filepath.Join(primary, "tool", "package.yaml"), "version: '1.0'\n")
	writeFile(t, filepath.Join(secondary, "tool", "package.yaml"), "version: '1.0'\n")
	writeFile(t, filepath.Join(secondary, "tool_copy", "package.yaml"), "name: tool\nversion: '1.0'\n")
	writeFile(t, filepath.Join(secondary, "tool2", "package.yaml"), "name: tool\nversion: '2.0'\n")

	cat := Scan(context.Background(), []string{primary, secondary})
	require.Equal(t, 2, cat.Len())

	pkg, ok := cat.Lookup("tool", "1.0")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(primary, "tool"), pkg.Root)

	dups := diagnosticsOf(cat, DiagnosticDuplicate)
	require.Len(t, dups, 2)
	assert.Equal(t, filepath.Join(secondary, "tool"), dups[0].Path)
	assert.Equal(t, filepath.Join(secondary, "tool_copy"), dups[1].Path)

	// Reversing the roots reverses the winner.
	cat = Scan(context.Background(), []string{secondary, primary})
	pkg, ok = cat.Lookup("tool", "1.0")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(secondary, "tool"), pkg.Root)
}

func TestScanIsDeterministicAcrossRuns(t *testing.T) {
	var roots []string
	for i := 0; i < 6; i++ {
		r := t.TempDir()
		writeFile(t, filepath.Join(r, "shared", "package.yaml"), "version: '1'\n")
		writeFile(t, filepath.Join(r, "own", strings.Repeat("v", i+1), "package.yaml"), "")
		roots = append(roots, r)
	}
	first := Scan(context.Background(), roots)
	for i := 0; i < 5; i++ {
		again := Scan(context.Background(), roots)
		assert.Equal(t, first.Packages(), again.Packages())
		assert.Equal(t, first.Diagnostics(), again.Diagnostics())
	}
}

func TestScanMissingRootIsSilent(t *testing.T) {
	cat := Scan(context.Background(), []string{filepath.Join(t.TempDir(), "nope")})
	assert.Equal(t, 0, cat.Len())
	assert.Empty(t, cat.Diagnostics())
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "package.yaml"), "version: '1'\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := Scan(ctx, []string{root})
	assert.True(t, cat.Cancelled())
	assert.Equal(t, 0, cat.Len())
	cancelled := diagnosticsOf(cat, DiagnosticCancelled)
	require.Len(t, cancelled, 1)
	assert.Contains(t, cancelled[0].Message, "context canceled")
}

func TestScanUnreadableRoot(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	cat := Scan(context.Background(), []string{locked})
	require.Len(t, diagnosticsOf(cat, DiagnosticUnreadable), 1)
}

func TestLookupHighestVersion(t *testing.T) {
	root := t.TempDir()
	for _, v := range []string{"1.9.0", "1.10.0", "1.2.0", "nightly"} {
		writeFile(t, filepath.Join(root, "tool", v, "package.yaml"), "")
	}

	cat := Scan(context.Background(), []string{root})
	pkg, ok := cat.Lookup("tool", "")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", pkg.Version)
	assert.Equal(t, []string{"1.10.0", "1.9.0", "1.2.0", "nightly"}, cat.Versions("tool"))

	_, ok = cat.Lookup("tool", "3.0")
	assert.False(t, ok)
	_, ok = cat.Lookup("other", "")
	assert.False(t, ok)

	latest := cat.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "1.10.0", latest[0].Version)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.10.0", "1.9.0", 1},
		{"2024", "2023.1", 1},
		{"1.0", "1.0.0", -1},
		{"1.0.0", "1.0.0", 0},
		{"1.0", "beta", 1},
		{"alpha", "beta", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tool", "package.yaml"), "version: '1'\ntools: [a]\nenvironment: {K: v}\n")

	cat := Scan(context.Background(), []string{root})
	pkg, ok := cat.Lookup("tool", "1")
	require.True(t, ok)
	pkg.Tools[0] = "mutated"
	pkg.Environment["K"] = "mutated"

	again, _ := cat.Lookup("tool", "1")
	assert.Equal(t, "a", again.Tools[0])
	assert.Equal(t, "v", again.Environment["K"])
}
