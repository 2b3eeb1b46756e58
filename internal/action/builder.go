package action

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/scan"
)

// MemberInput bundles one member's resolved config and scanned TUs, the
// input to Build for a single member.
type MemberInput struct {
	Config config.EffectiveConfig
	Scan   scan.Result
}

// Cache is the subset of fingerprint.Store the builder needs: lookup only;
// validity against a freshly computed input set is checked by the builder.
type Cache interface {
	Lookup(key string) (fingerprint.Entry, bool)
}

// InputHasher computes the current content hash for a file path; extracted
// as a function value so tests can stub it without touching a real
// filesystem.
type InputHasher func(path string) (string, error)

// Inputs bundles the filesystem probes the builder needs to judge
// staleness: a content hasher, and an optional cheap stat-based fast-skip
// ahead of it (size+mtime match lets a TU skip a full re-hash; see the
// fingerprint design's fast-skip allowance).
type Inputs struct {
	Hash      InputHasher
	Unchanged func(path string, want fingerprint.FileStat) bool
}

// Build constructs the full action DAG across all targeted members, in the
// dependency-topological order the caller already resolved (ordered per
// workspace.TopologicalOrder). Cross-member dependency is modeled purely as
// a predecessor edge from a dependent member's Link action to each
// dependency's Link action.
func Build(inputs []MemberInput, cache Cache, probe Inputs) (*Graph, error) {
	g := &Graph{index: map[string]int{}}
	seenOutputs := map[string]string{} // output path -> action ID that claims it

	add := func(a *Action) error {
		if owner, dup := seenOutputs[a.OutputPath]; dup {
			return ferror.New(ferror.ConfigParse, "output path %s claimed by both %s and %s", a.OutputPath, owner, a.ID)
		}
		seenOutputs[a.OutputPath] = a.ID
		g.index[a.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, a)
		return nil
	}

	for _, in := range inputs {
		ec := in.Config
		var compileIDs []string

		for _, tu := range in.Scan.TUs {
			obj := objectPath(ec, tu.Path)
			key := compileActionKey(ec, tu)
			skippable := isCompileSkippable(cache, key, ec, obj, probe)

			a := &Action{
				ID:         CompileActionID(ec.Member, tu.Path),
				ReportID:   uuid.New().String(),
				Kind:       Compile,
				Member:     ec.Member,
				Config:     ec,
				TU:         tu,
				ObjectPath: obj,
				OutputPath: obj,
				Inputs:     []string{tu.Path},
				Key:        key,
				Skippable:  skippable,
			}
			if err := add(a); err != nil {
				return nil, err
			}
			compileIDs = append(compileIDs, a.ID)
		}

		// linkPredSet dedupes predecessor IDs through a set, the same way the
		// teacher's context.go collapses workspace package names: a member
		// named twice in `dependencies` (or reachable by more than one path)
		// must still contribute only one predecessor edge.
		linkPredSet := mapset.NewSet()
		for _, id := range compileIDs {
			linkPredSet.Add(id)
		}
		for _, dep := range ec.DependsOn {
			linkPredSet.Add(LinkActionID(dep))
		}
		linkPreds := make([]string, 0, linkPredSet.Cardinality())
		for _, v := range linkPredSet.ToSlice() {
			linkPreds = append(linkPreds, v.(string))
		}
		sort.Strings(linkPreds)

		objects := make([]string, len(compileIDs))
		for i, id := range compileIDs {
			n, _, _ := g.ByID(id)
			objects[i] = n.ObjectPath
		}
		sortedObjects := append([]string{}, objects...)
		sort.Strings(sortedObjects)

		linkOut := LinkOutputPath(ec)
		linkKey := linkActionKey(ec, objects)

		compilesSkippable := true
		for _, id := range compileIDs {
			n, _, _ := g.ByID(id)
			if !n.Skippable {
				compilesSkippable = false
				break
			}
		}
		depsSkippable := true
		for _, dep := range ec.DependsOn {
			n, _, ok := g.ByID(LinkActionID(dep))
			if !ok || !n.Skippable {
				depsSkippable = false
				break
			}
		}
		linkSkippable := compilesSkippable && depsSkippable && isLinkSkippable(cache, linkKey, linkOut)

		if err := add(&Action{
			ID:           LinkActionID(ec.Member),
			ReportID:     uuid.New().String(),
			Kind:         Link,
			Member:       ec.Member,
			Config:       ec,
			OutputPath:   linkOut,
			Inputs:       sortedObjects,
			Key:          linkKey,
			Skippable:    linkSkippable,
			Predecessors: linkPreds,
		}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// compileActionKey hashes (member, TU path, profile, canonicalized
// effective command line excluding input/output path arguments, cross
// target triple or empty).
func compileActionKey(ec config.EffectiveConfig, tu scan.TranslationUnit) string {
	cmdline := canonicalCompileCommandLine(ec)
	return fingerprint.ActionKey(ec.Member, tu.Path, ec.Profile, cmdline, ec.Cross.Target)
}

// linkActionKey hashes (member, profile, canonicalized link command line,
// sorted list of contributing object paths).
func linkActionKey(ec config.EffectiveConfig, objects []string) string {
	sorted := append([]string{}, objects...)
	sort.Strings(sorted)
	cmdline := canonicalLinkCommandLine(ec)
	fields := append([]string{ec.Member, ec.Profile, cmdline}, sorted...)
	return fingerprint.ActionKey(fields...)
}

// canonicalCompileCommandLine renders the effective compiler invocation,
// excluding the input source path and output object path (those are
// covered by other action-key fields, not the command line itself).
func canonicalCompileCommandLine(ec config.EffectiveConfig) string {
	var parts []string
	parts = append(parts, ec.Compiler)
	parts = append(parts, ec.Flags...)
	for _, inc := range ec.IncludeRoots {
		parts = append(parts, "-I"+inc)
	}
	parts = append(parts, fingerprint.SortedEntries(definitionsToFlags(ec.Definitions))...)
	if ec.WarningsAsErrors {
		parts = append(parts, "-Werror")
	}
	return joinFields(parts)
}

func definitionsToFlags(defs map[string]string) map[string]string {
	out := make(map[string]string, len(defs))
	for k, v := range defs {
		out["-D"+k] = v
	}
	return out
}

// canonicalLinkCommandLine renders the effective link invocation, excluding
// the object file list (covered separately by the sorted-objects field).
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

// isCompileSkippable reports whether the cache entry for key is valid
// against the TU's current content hash and its previously recorded closed
// include set. A TU with no entry (first build) is always stale.
func isCompileSkippable(cache Cache, key string, ec config.EffectiveConfig, obj string, probe Inputs) bool {
	entry, ok := cache.Lookup(key)
	if !ok {
		return false
	}
	if entry.CommandLine != canonicalCompileCommandLine(ec) {
		return false
	}
	if entry.OutputPath != obj {
		return false
	}
	for path, wantHash := range entry.InputHashes {
		if stat, ok := entry.InputStats[path]; ok && probe.Unchanged != nil && probe.Unchanged(path, stat) {
			continue
		}
		gotHash, err := probe.Hash(path)
		if err != nil || gotHash != wantHash {
			return false
		}
	}
	return true
}

// isLinkSkippable reports whether the cache entry for key is valid; the
// caller has already confirmed every predecessor is skippable.
func isLinkSkippable(cache Cache, key string, outputPath string) bool {
	entry, ok := cache.Lookup(key)
	if !ok {
		return false
	}
	return entry.OutputPath == outputPath
}
