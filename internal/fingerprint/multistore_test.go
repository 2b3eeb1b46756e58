package fingerprint_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/fingerprint"
)

func TestMultiStoreRoutesByMember(t *testing.T) {
	fsys := afero.NewMemMapFs()
	coreStore, err := fingerprint.Open(fsys, "/build/core")
	require.NoError(t, err)
	guiStore, err := fingerprint.Open(fsys, "/build/gui")
	require.NoError(t, err)

	multi := fingerprint.NewMultiStore(map[string]*fingerprint.Store{
		"core": coreStore,
		"gui":  guiStore,
	})

	require.NoError(t, multi.Record("core", "k1", fingerprint.Entry{CommandLine: "core cmd"}))
	require.NoError(t, multi.Record("gui", "k2", fingerprint.Entry{CommandLine: "gui cmd"}))

	got, ok := multi.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "core cmd", got.CommandLine)

	got, ok = multi.Lookup("k2")
	require.True(t, ok)
	assert.Equal(t, "gui cmd", got.CommandLine)

	_, ok = multi.Lookup("ghost")
	assert.False(t, ok)
}

func TestMultiStoreRecordUnknownMemberIsNoop(t *testing.T) {
	multi := fingerprint.NewMultiStore(map[string]*fingerprint.Store{})
	err := multi.Record("nope", "k1", fingerprint.Entry{})
	assert.NoError(t, err)
}

func TestMultiStoreFlushAll(t *testing.T) {
	fsys := afero.NewMemMapFs()
	coreStore, err := fingerprint.Open(fsys, "/build/core")
	require.NoError(t, err)
	multi := fingerprint.NewMultiStore(map[string]*fingerprint.Store{"core": coreStore})

	require.NoError(t, multi.Record("core", "k1", fingerprint.Entry{}))
	require.NoError(t, multi.Flush())

	reopened, err := fingerprint.Open(fsys, "/build/core")
	require.NoError(t, err)
	_, ok := reopened.Lookup("k1")
	assert.True(t, ok)
}
