package fingerprint_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/fingerprint"
)

func TestStoreRecordAndLookup(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)

	_, ok := store.Lookup("k1")
	assert.False(t, ok)

	entry := fingerprint.Entry{
		InputHashes: map[string]string{"/a.c": "deadbeef"},
		CommandLine: "gcc -c a.c",
		OutputPath:  "/build/a.o",
	}
	require.NoError(t, store.Record("k1", entry))

	got, ok := store.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, entry.CommandLine, got.CommandLine)
}

func TestStoreFlushPersistsAcrossReopen(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fsys, "/build/a.o", []byte("obj"), 0o644))
	entry := fingerprint.Entry{OutputPath: "/build/a.o", CommandLine: "gcc -c a.c"}
	require.NoError(t, store.Record("k1", entry))
	require.NoError(t, store.Flush())

	reopened, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)
	got, ok := reopened.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "gcc -c a.c", got.CommandLine)
}

func TestStoreJournalSurvivesWithoutFlush(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fsys, "/build/a.o", []byte("obj"), 0o644))
	entry := fingerprint.Entry{OutputPath: "/build/a.o", CommandLine: "gcc -c a.c"}
	require.NoError(t, store.Record("k1", entry))
	// No Flush: a crash between Record and Flush must still be recoverable
	// from the journal on the next Open.

	reopened, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)
	got, ok := reopened.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "gcc -c a.c", got.CommandLine)
}

func TestStoreDropsEntriesWithMissingOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)

	// Output path never written to disk.
	entry := fingerprint.Entry{OutputPath: "/build/gone.o", CommandLine: "gcc -c gone.c"}
	require.NoError(t, store.Record("k1", entry))
	require.NoError(t, store.Flush())

	reopened, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)
	_, ok := reopened.Lookup("k1")
	assert.False(t, ok, "an entry whose output vanished must not survive reopen")
}

func TestPurgeRemovesBuildRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store, err := fingerprint.Open(fsys, "/build")
	require.NoError(t, err)
	require.NoError(t, store.Record("k1", fingerprint.Entry{}))
	require.NoError(t, store.Flush())

	require.NoError(t, fingerprint.Purge(fsys, "/build"))

	exists, err := afero.DirExists(fsys, "/build")
	require.NoError(t, err)
	assert.False(t, exists)
}
