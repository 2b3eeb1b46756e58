package scaffold_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/scaffold"
)

func TestNewSingleProjectC(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.New(scaffold.Options{Name: "app", Dir: dir}))

	assertFileExists(t, filepath.Join(dir, "forge.toml"))
	assertFileExists(t, filepath.Join(dir, "src", "main.c"))
	assertFileExists(t, filepath.Join(dir, "include"))

	contents, err := os.ReadFile(filepath.Join(dir, "forge.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "app")
	assert.Contains(t, string(contents), "cc")
}

func TestNewSingleProjectCXX(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.New(scaffold.Options{Name: "app", Dir: dir, CXX: true}))

	assertFileExists(t, filepath.Join(dir, "src", "main.cpp"))

	contents, err := os.ReadFile(filepath.Join(dir, "forge.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "c++")
}

func TestNewWorkspaceNestsMemberUnderName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.New(scaffold.Options{Name: "core", Dir: dir, Workspace: true}))

	assertFileExists(t, filepath.Join(dir, "forge.toml")) // workspace root document
	assertFileExists(t, filepath.Join(dir, "core", "forge.toml"))
	assertFileExists(t, filepath.Join(dir, "core", "src", "main.c"))
}

func TestNewRespectsExplicitCompiler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scaffold.New(scaffold.Options{Name: "app", Dir: dir, Compiler: "clang"}))

	contents, err := os.ReadFile(filepath.Join(dir, "forge.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "clang")
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, "expected %s to exist", path)
}
