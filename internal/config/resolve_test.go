package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/ferror"
)

func writeFile(t *testing.T, fsys afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(contents), 0o644))
}

func TestResolveSingleProjectDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "g++"
target = "app"
`)

	ecs, err := config.Resolve(fsys, config.Request{Root: "/proj"})
	require.NoError(t, err)
	require.Len(t, ecs, 1)

	ec := ecs[0]
	assert.Equal(t, "debug", ec.Profile)
	assert.Equal(t, "g++", ec.Compiler)
	assert.Equal(t, "app", ec.TargetName)
	assert.Equal(t, []string{"src"}, ec.SrcRoots)
	assert.True(t, ec.Jobs > 0)
}

func TestResolveMissingRootConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := config.Resolve(fsys, config.Request{Root: "/nope"})
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigMissing, ferror.KindOf(err))
}

func TestResolveUnknownKeyRejected(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "cc"
target = "app"

[bogus]
x = 1
`)
	_, err := config.Resolve(fsys, config.Request{Root: "/proj"})
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigParse, ferror.KindOf(err))
}

func TestResolveUnknownProfile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "cc"
target = "app"
`)
	_, err := config.Resolve(fsys, config.Request{Root: "/proj", Profile: "asan"})
	require.Error(t, err)
	assert.Equal(t, ferror.UnknownProfile, ferror.KindOf(err))
}

func TestResolveWorkspaceMergesAndOrders(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/forge.toml", `
[build]
compiler = "cc"

[compiler]
flags = ["-Wall"]

[workspace]
members = ["gui", "core"]

[workspace.dependencies]
gui = ["core"]
`)
	writeFile(t, fsys, "/ws/core/forge.toml", `
[build]
target = "libcore"

[compiler]
flags = ["-O2"]
`)
	writeFile(t, fsys, "/ws/gui/forge.toml", `
[build]
target = "gui-app"
`)

	ecs, err := config.Resolve(fsys, config.Request{Root: "/ws"})
	require.NoError(t, err)
	require.Len(t, ecs, 2)

	// core must come before gui (gui depends on core).
	assert.Equal(t, "core", ecs[0].Member)
	assert.Equal(t, "gui", ecs[1].Member)

	core := ecs[0]
	assert.Equal(t, []string{"-Wall", "-O2", "-O0", "-g"}, core.Flags, "workspace flags precede member flags, profile flags come last")

	gui := ecs[1]
	assert.Equal(t, []string{"core"}, gui.DependsOn)
}

func TestResolveWorkspaceCycleRejected(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/forge.toml", `
[workspace]
members = ["a", "b"]

[workspace.dependencies]
a = ["b"]
b = ["a"]
`)
	writeFile(t, fsys, "/ws/a/forge.toml", `
[build]
compiler = "cc"
target = "a"
`)
	writeFile(t, fsys, "/ws/b/forge.toml", `
[build]
compiler = "cc"
target = "b"
`)

	_, err := config.Resolve(fsys, config.Request{Root: "/ws"})
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigCycle, ferror.KindOf(err))
}

func TestResolveWorkspaceMemberMissing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/forge.toml", `
[workspace]
members = ["ghost"]
`)
	_, err := config.Resolve(fsys, config.Request{Root: "/ws"})
	require.Error(t, err)
	assert.Equal(t, ferror.MemberMissing, ferror.KindOf(err))
}

func TestResolveNarrowsToSelectedMembers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/forge.toml", `
[workspace]
members = ["a", "b"]
`)
	writeFile(t, fsys, "/ws/a/forge.toml", `
[build]
compiler = "cc"
target = "a"
`)
	writeFile(t, fsys, "/ws/b/forge.toml", `
[build]
compiler = "cc"
target = "b"
`)

	ecs, err := config.Resolve(fsys, config.Request{Root: "/ws", Members: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, ecs, 1)
	assert.Equal(t, "b", ecs[0].Member)
}

func TestResolveCrossOverridesRequestWinsOverFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "gcc"
target = "app"

[cross]
target = "arm-file"
toolchain = "arm-none-eabi-"
`)

	ecs, err := config.Resolve(fsys, config.Request{
		Root:        "/proj",
		CrossTarget: "riscv64-req",
	})
	require.NoError(t, err)
	ec := ecs[0]
	assert.Equal(t, "riscv64-req", ec.Cross.Target, "request-line cross target wins")
	assert.Equal(t, "arm-none-eabi-gcc", ec.Compiler, "toolchain prefix rewrites a bare compiler name")
}

func TestResolveCrossLeavesAbsoluteCompilerIntact(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "/opt/cross/bin/gcc"
target = "app"

[cross]
toolchain = "arm-none-eabi-"
`)
	ecs, err := config.Resolve(fsys, config.Request{Root: "/proj"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/cross/bin/gcc", ecs[0].Compiler)
}

func TestResolveDefaultProfileFlagsTranslated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "cc"
target = "app"
`)
	ecs, err := config.Resolve(fsys, config.Request{Root: "/proj"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-O0", "-g"}, ecs[0].Flags, "debug profile emits -O0 and -g but not -flto")
}

func TestResolveReleaseProfileFlagsTranslated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "cc"
target = "app"
`)
	ecs, err := config.Resolve(fsys, config.Request{Root: "/proj", Profile: "release"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-O2", "-flto"}, ecs[0].Flags, "release profile emits -O2 and -flto but not -g")
}

func TestResolveCustomProfileFlagsAndExtraFlagsOrdered(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/proj/forge.toml", `
[build]
compiler = "cc"
target = "app"

[compiler]
flags = ["-Wall"]

[profiles.asan]
opt_level = "1"
debug_info = true
lto = false
extra_flags = ["-fsanitize=address"]
`)
	ecs, err := config.Resolve(fsys, config.Request{Root: "/proj", Profile: "asan"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-Wall", "-O1", "-g", "-fsanitize=address"}, ecs[0].Flags,
		"base compiler flags, then profile-derived flags, then extra_flags")
}

func TestResolveWorkspaceConcatenatesSrcRoots(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/ws/forge.toml", `
[paths]
src = ["shared"]

[workspace]
members = ["core"]
`)
	writeFile(t, fsys, "/ws/core/forge.toml", `
[build]
compiler = "cc"
target = "libcore"

[paths]
src = ["src"]
`)
	ecs, err := config.Resolve(fsys, config.Request{Root: "/ws"})
	require.NoError(t, err)
	require.Len(t, ecs, 1)
	assert.Equal(t, []string{"shared", "src"}, ecs[0].SrcRoots, "workspace src roots precede member src roots")
}
