// Package fingerprint implements the Fingerprint & Cache Store: it persists
// per-action cache entries and answers staleness queries against the
// current state of a TU's closed include set and the compiler command line.
package fingerprint

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/forgebuild/forge/internal/ferror"
)

// DocumentName is the stable cache filename persisted under a member's
// build-output root.
const DocumentName = ".forge-cache"

// JournalName is the append-only log of records written since the last full
// rewrite of DocumentName.
const JournalName = DocumentName + ".journal"

// FileStat is the cheap (size, mtime) pair recorded alongside an input's
// content hash so a later run can skip re-hashing a file whose stat hasn't
// moved, per the "acceptable as a fast skip when size and mtime both match"
// allowance in the fingerprint design; it never substitutes for the content
// hash as the primary signal.
type FileStat struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time"`
}

// Entry is a persisted cache record, keyed by action key.
type Entry struct {
	// InputHashes maps each input file's path to its content hash; the
	// command line is kept separately in CommandLine.
	InputHashes map[string]string `json:"input_hashes"`
	// InputStats mirrors InputHashes with the (size, mtime) observed when
	// the hash was computed, used only as a fast-skip ahead of re-hashing.
	InputStats  map[string]FileStat `json:"input_stats,omitempty"`
	CommandLine string              `json:"command_line"`
	OutputPath  string              `json:"output_path"`
	OutputHash  string              `json:"output_hash"`
	Timestamp   int64               `json:"timestamp"`
}

// Store is the in-memory, mutex-guarded view of one member's cache document,
// backed by fsys under root.
type Store struct {
	fsys afero.Fs
	root string // member's build-output root

	mu      sync.RWMutex
	entries map[string]Entry

	journalMu sync.Mutex
	journal   afero.File
}

// Open loads the persisted document (applying any journal left from an
// interrupted run) and opens the journal for appending new records.
func Open(fsys afero.Fs, root string) (*Store, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, ferror.Wrap(ferror.CacheIO, err, "creating build-output root %s", root)
	}

	entries, err := loadDocument(fsys, filepath.Join(root, DocumentName))
	if err != nil {
		return nil, err
	}
	if err := applyJournal(fsys, filepath.Join(root, JournalName), entries); err != nil {
		return nil, err
	}
	dropMissingOutputs(fsys, entries)

	journal, err := fsys.OpenFile(filepath.Join(root, JournalName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ferror.Wrap(ferror.CacheIO, err, "opening cache journal under %s", root)
	}

	return &Store{fsys: fsys, root: root, entries: entries, journal: journal}, nil
}

func loadDocument(fsys afero.Fs, path string) (map[string]Entry, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, ferror.Wrap(ferror.CacheIO, err, "reading cache document %s", path)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A corrupt document is not fatal to the run: start from empty and
		// let every action recompute, per the CacheIO demotion policy.
		return map[string]Entry{}, nil
	}
	return entries, nil
}

// journalRecord is one line of the append-only journal.
type journalRecord struct {
	Key   string `json:"key"`
	Entry Entry  `json:"entry"`
}

func applyJournal(fsys afero.Fs, path string, entries map[string]Entry) error {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ferror.Wrap(ferror.CacheIO, err, "reading cache journal %s", path)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for {
		var rec journalRecord
		if err := dec.Decode(&rec); err != nil {
			// Tolerate a partial/truncated final record from an interrupted run.
			break
		}
		entries[rec.Key] = rec.Entry
	}
	return nil
}

// dropMissingOutputs removes any entry whose recorded output file is gone,
// per the cache-load tolerance rule.
func dropMissingOutputs(fsys afero.Fs, entries map[string]Entry) {
	for key, e := range entries {
		if e.OutputPath == "" {
			continue
		}
		if exists, _ := afero.Exists(fsys, e.OutputPath); !exists {
			delete(entries, key)
		}
	}
}

// Lookup returns the entry for key, if present.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Record stores a new entry for key, appending it to the journal
// immediately (write-temp-then-rename semantics are applied at Flush for
// the full document; the journal append is the durability mechanism for a
// single successful action).
func (s *Store) Record(key string, e Entry) error {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	rec := journalRecord{Key: key, Entry: e}
	line, err := json.Marshal(rec)
	if err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "marshaling cache record for %s", key)
	}
	line = append(line, '\n')

	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	if _, err := s.journal.Write(line); err != nil {
		// CacheIO during record is demoted: the action's output is still
		// valid on disk, so this is logged by the caller and not fatal.
		return ferror.Wrap(ferror.CacheIO, err, "appending cache journal entry for %s", key)
	}
	return nil
}

// Purge removes the cache document, journal, and build-output root for a
// member, the operation behind `forge clean`.
func Purge(fsys afero.Fs, root string) error {
	if err := fsys.RemoveAll(root); err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "purging build-output root %s", root)
	}
	return nil
}

// Flush atomically rewrites the full cache document from the in-memory
// entries (write-temp-then-rename) and truncates the journal, then closes
// the journal handle. Call once at the end of a request.
func (s *Store) Flush() error {
	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "marshaling cache document")
	}

	docPath := filepath.Join(s.root, DocumentName)
	tmpPath := docPath + ".tmp"
	if err := afero.WriteFile(s.fsys, tmpPath, raw, 0o644); err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "writing temp cache document")
	}
	if err := s.fsys.Rename(tmpPath, docPath); err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "renaming cache document into place")
	}

	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	if err := s.journal.Close(); err != nil {
		return ferror.Wrap(ferror.CacheIO, err, "closing cache journal")
	}
	if err := s.fsys.Remove(filepath.Join(s.root, JournalName)); err != nil && !os.IsNotExist(err) {
		return ferror.Wrap(ferror.CacheIO, err, "truncating cache journal")
	}
	return nil
}
