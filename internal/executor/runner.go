package executor

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/forgebuild/forge/internal/action"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/process"
)

// Cache is the subset of the cache store the runner needs to persist a new
// entry after a successful action, routed by the action's owning member
// since each member persists its own cache document.
type Cache interface {
	Record(member, key string, e fingerprint.Entry) error
}

// SubprocessRunner invokes a compile or link action's underlying compiler
// command through a process.Manager, parses the -MMD dependency side file
// for a new closed include set, and records the resulting cache entry.
type SubprocessRunner struct {
	Fsys    afero.Fs
	Manager *process.Manager
	Cache   Cache
}

// NewSubprocessRunner builds a Runner sharing one process.Manager and cache
// across every action it executes.
func NewSubprocessRunner(fsys afero.Fs, mgr *process.Manager, cache Cache) *SubprocessRunner {
	return &SubprocessRunner{Fsys: fsys, Manager: mgr, Cache: cache}
}

// Execute runs a's subprocess to completion and, on success, records its
// cache entry. A non-zero exit or a failure to create the output directory
// is returned as a *ferror.Error; once the subprocess has succeeded, hashing
// and cache-record failures are not returned (the on-disk output is already
// valid, and an input that could not be hashed is left out of the entry).
func (r *SubprocessRunner) Execute(ctx context.Context, a *action.Action) error {
	switch a.Kind {
	case action.Compile:
		return r.compile(ctx, a)
	case action.Link:
		return r.link(ctx, a)
	default:
		return ferror.New(ferror.Unknown, "unrecognized action kind for %s", a.ID)
	}
}

func (r *SubprocessRunner) compile(ctx context.Context, a *action.Action) error {
	ec := a.Config
	depfile := a.ObjectPath + ".d"

	args := []string{}
	args = append(args, ec.Flags...)
	for _, inc := range ec.IncludeRoots {
		args = append(args, "-I"+inc)
	}
	for k, v := range ec.Definitions {
		if v == "" {
			args = append(args, "-D"+k)
		} else {
			args = append(args, "-D"+k+"="+v)
		}
	}
	if ec.WarningsAsErrors {
		args = append(args, "-Werror")
	}
	args = append(args, "-MMD", "-MF", depfile)
	args = append(args, "-c", a.TU.Path, "-o", a.ObjectPath)

	if err := r.Fsys.MkdirAll(filepath.Dir(a.ObjectPath), 0o755); err != nil {
		return ferror.Wrap(ferror.ScanIO, err, "creating object directory for %s", a.ID)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ec.Compiler, args...)
	cmd.Dir = ec.Root
	cmd.Stderr = &stderr

	if err := r.Manager.Exec(cmd); err != nil {
		return ferror.Wrap(ferror.CompileFailed, err, "compiling %s: %s", a.TU.Path, stderr.String())
	}

	depData, err := afero.ReadFile(r.Fsys, depfile)
	var headers []string
	if err == nil {
		headers = parseDepFile(depData)
	}

	inputHashes := map[string]string{}
	inputStats := map[string]fingerprint.FileStat{}
	for _, p := range append([]string{a.TU.Path}, headers...) {
		h, hashErr := fingerprint.HashFile(r.Fsys, p)
		if hashErr != nil {
			continue // a header that vanished between preprocess and hash forces a rebuild next run
		}
		inputHashes[p] = h
		if stat, statErr := fingerprint.StatFile(r.Fsys, p); statErr == nil {
			inputStats[p] = stat
		}
	}
	outHash, _ := fingerprint.HashFile(r.Fsys, a.ObjectPath)

	entry := fingerprint.Entry{
		InputHashes: inputHashes,
		InputStats:  inputStats,
		CommandLine: canonicalCompileCommandLine(ec),
		OutputPath:  a.ObjectPath,
		OutputHash:  outHash,
		Timestamp:   time.Now().UnixNano(),
	}
	_ = r.Cache.Record(a.Member, a.Key, entry)
	return nil
}

func (r *SubprocessRunner) link(ctx context.Context, a *action.Action) error {
	ec := a.Config

	args := []string{}
	args = append(args, ec.Flags...)
	for _, lp := range ec.LibraryPaths {
		args = append(args, "-L"+lp)
	}
	args = append(args, a.Inputs...)
	for _, lib := range ec.Libraries {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", a.OutputPath)

	if err := r.Fsys.MkdirAll(filepath.Dir(a.OutputPath), 0o755); err != nil {
		return ferror.Wrap(ferror.ScanIO, err, "creating output directory for %s", a.ID)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ec.Compiler, args...)
	cmd.Dir = ec.Root
	cmd.Stderr = &stderr

	if err := r.Manager.Exec(cmd); err != nil {
		return ferror.Wrap(ferror.LinkFailed, err, "linking %s: %s", ec.TargetName, stderr.String())
	}

	inputHashes := map[string]string{}
	inputStats := map[string]fingerprint.FileStat{}
	for _, p := range a.Inputs {
		h, hashErr := fingerprint.HashFile(r.Fsys, p)
		if hashErr != nil {
			continue
		}
		inputHashes[p] = h
		if stat, statErr := fingerprint.StatFile(r.Fsys, p); statErr == nil {
			inputStats[p] = stat
		}
	}
	outHash, _ := fingerprint.HashFile(r.Fsys, a.OutputPath)

	entry := fingerprint.Entry{
		InputHashes: inputHashes,
		InputStats:  inputStats,
		CommandLine: canonicalLinkCommandLine(ec),
		OutputPath:  a.OutputPath,
		OutputHash:  outHash,
		Timestamp:   time.Now().UnixNano(),
	}
	_ = r.Cache.Record(a.Member, a.Key, entry)
	return nil
}

// canonicalCompileCommandLine and canonicalLinkCommandLine mirror the
// action package's own canonicalization so a recorded cache entry's
// CommandLine field compares equal to what the builder checks on the next
// run; duplicated rather than imported to keep action's canonicalizers
// unexported (they are an implementation detail of action key derivation).
func canonicalCompileCommandLine(ec config.EffectiveConfig) string {
	var parts []string
	parts = append(parts, ec.Compiler)
	parts = append(parts, ec.Flags...)
	for _, inc := range ec.IncludeRoots {
		parts = append(parts, "-I"+inc)
	}
	defs := make(map[string]string, len(ec.Definitions))
	for k, v := range ec.Definitions {
		defs["-D"+k] = v
	}
	parts = append(parts, fingerprint.SortedEntries(defs)...)
	if ec.WarningsAsErrors {
		parts = append(parts, "-Werror")
	}
	return joinFields(parts)
}

func canonicalLinkCommandLine(ec config.EffectiveConfig) string {
	var parts []string
	parts = append(parts, ec.Compiler)
	parts = append(parts, ec.Flags...)
	for _, lp := range ec.LibraryPaths {
		parts = append(parts, "-L"+lp)
	}
	for _, lib := range ec.Libraries {
		parts = append(parts, "-l"+lib)
	}
	return joinFields(parts)
}

func joinFields(parts []string) string {
	return strings.Join(parts, " ")
}
