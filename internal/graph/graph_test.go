package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephyr-sh/zephyr/internal/manifest"
	"github.com/zephyr-sh/zephyr/internal/platform"
	"github.com/zephyr-sh/zephyr/internal/zerrors"
)

func writeModuleDir(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.toml"), []byte(body), 0644))
}

func TestDiscover_SkipsNonModuleDirs(t *testing.T) {
	root := t.TempDir()
	writeModuleDir(t, root, "good", `[module]
name = "good"`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-module"), 0755))

	mods, dropped, err := Discover(root, nil)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "good", mods[0].Name)
	assert.Empty(t, dropped)
}

func TestDiscover_DropsUnparsableModules(t *testing.T) {
	root := t.TempDir()
	writeModuleDir(t, root, "broken", `[module`)

	mods, dropped, err := Discover(root, nil)
	require.NoError(t, err)
	assert.Empty(t, mods)
	require.Len(t, dropped, 1)
}

func TestDiscover_CacheReturnsClones(t *testing.T) {
	root := t.TempDir()
	writeModuleDir(t, root, "m", `[module]
name = "m"

[dependencies]
required = ["dep"]`)

	cache := NewCache(4)
	mods1, _, err := Discover(root, cache)
	require.NoError(t, err)
	mods2, _, err := Discover(root, cache)
	require.NoError(t, err)

	mods1[0].RequiredDeps[0] = "mutated"
	assert.Equal(t, "dep", mods2[0].RequiredDeps[0])
}

func TestFilterCompatible(t *testing.T) {
	cur := platform.Current{OS: "linux", Arch: "amd64", Shell: "zsh", ShellVersion: "5.9"}

	linuxOnly := &manifest.Module{Name: "a", Platforms: manifest.Platforms{OS: []string{"linux"}}}
	darwinOnly := &manifest.Module{Name: "b", Platforms: manifest.Platforms{OS: []string{"darwin"}}}
	anyPlatform := &manifest.Module{Name: "c"}
	tooNewShell := &manifest.Module{Name: "d", Platforms: manifest.Platforms{MinVersion: "6.0"}}

	compatible, incompatible := FilterCompatible([]*manifest.Module{linuxOnly, darwinOnly, anyPlatform, tooNewShell}, cur)

	var names []string
	for _, m := range compatible {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, names)
	assert.Len(t, incompatible, 2)
}

func TestResolve_OrdersByPriorityThenName(t *testing.T) {
	a := &manifest.Module{Name: "a", Priority: 100}
	b := &manifest.Module{Name: "b", Priority: 50}
	c := &manifest.Module{Name: "c", Priority: 50}

	ordered, err := Resolve([]*manifest.Module{a, b, c})
	require.NoError(t, err)

	var names []string
	for _, m := range ordered {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"b", "c", "a"}, names)
}

func TestResolve_RequiredDepOrderedFirst(t *testing.T) {
	a := &manifest.Module{Name: "a", Priority: 100, RequiredDeps: []string{"b"}}
	b := &manifest.Module{Name: "b", Priority: 100}

	ordered, err := Resolve([]*manifest.Module{a, b})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "b", ordered[0].Name)
	assert.Equal(t, "a", ordered[1].Name)
}

func TestResolve_MissingRequiredDep(t *testing.T) {
	a := &manifest.Module{Name: "a", RequiredDeps: []string{"ghost"}}

	_, err := Resolve([]*manifest.Module{a})
	require.Error(t, err)

	var gerr *zerrors.GraphError
	require.ErrorAs(t, err, &gerr)
	require.Len(t, gerr.MissingDeps, 1)
	assert.Equal(t, "ghost", gerr.MissingDeps[0].Dep)
}

func TestResolve_CircularDep(t *testing.T) {
	a := &manifest.Module{Name: "a", RequiredDeps: []string{"b"}}
	b := &manifest.Module{Name: "b", RequiredDeps: []string{"a"}}

	_, err := Resolve([]*manifest.Module{a, b})
	require.Error(t, err)

	var gerr *zerrors.GraphError
	require.ErrorAs(t, err, &gerr)
	require.NotNil(t, gerr.Cycle)
	assert.ElementsMatch(t, []string{"a", "b"}, gerr.Cycle.Members)
}

func TestResolve_OptionalDepCycleFallsBackToRequiredOnly(t *testing.T) {
	// a requires b (hard edge); b optionally depends on a (soft edge that
	// would cycle) - resolution must still succeed via the hard edge order.
	a := &manifest.Module{Name: "a", RequiredDeps: []string{"b"}}
	b := &manifest.Module{Name: "b", OptionalDeps: []string{"a"}}

	ordered, err := Resolve([]*manifest.Module{a, b})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "b", ordered[0].Name)
	assert.Equal(t, "a", ordered[1].Name)
}

func TestResolve_MissingOptionalDepIgnored(t *testing.T) {
	a := &manifest.Module{Name: "a", OptionalDeps: []string{"ghost"}}

	ordered, err := Resolve([]*manifest.Module{a})
	require.NoError(t, err)
	require.Len(t, ordered, 1)
}

func TestBuildReverseDeps(t *testing.T) {
	a := &manifest.Module{Name: "a", RequiredDeps: []string{"b"}}
	c := &manifest.Module{Name: "c", RequiredDeps: []string{"b"}}
	b := &manifest.Module{Name: "b"}

	rev := BuildReverseDeps([]*manifest.Module{a, b, c})
	require.Contains(t, rev, "b")
	assert.Len(t, rev["b"], 2)
	_, hasA := rev["b"]["a"]
	_, hasC := rev["b"]["c"]
	assert.True(t, hasA)
	assert.True(t, hasC)
}
