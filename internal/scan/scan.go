// Package scan implements the Source & Header Scanner: it enumerates
// translation units under a member's source roots and normalizes include
// roots, without walking into include roots itself (those are left for the
// compiler to search).
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/ferror"
)

// recognizedSuffixes are the C/C++ source extensions scan recognizes, per
// the scanner's stated suffix list.
var recognizedSuffixes = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true, ".m": true, ".mm": true,
}

// TranslationUnit is one source file belonging to one member.
type TranslationUnit struct {
	Path       string // absolute, canonicalized
	Member     string
	OutputPath string // left empty by Scan; the builder keeps object paths on action.Action.ObjectPath
}

// Result is the scanner's output for one member.
type Result struct {
	TUs          []TranslationUnit
	IncludeRoots []string
}

// Scan enumerates translation units for ec, returning them in sorted
// lexicographic order of normalized path so action keys stay stable across
// runs.
func Scan(ec config.EffectiveConfig) (Result, error) {
	var tus []TranslationUnit
	seen := map[string]bool{} // collapses duplicate absolute paths across src roots

	for _, root := range ec.SrcRoots {
		srcRoot := root
		if !filepath.IsAbs(srcRoot) {
			srcRoot = filepath.Join(ec.Root, root)
		}
		found, err := walkSourceRoot(srcRoot)
		if err != nil {
			return Result{}, err
		}
		for _, p := range found {
			if seen[p] {
				continue
			}
			seen[p] = true
			tus = append(tus, TranslationUnit{Path: p, Member: ec.Member})
		}
	}

	sort.Slice(tus, func(i, j int) bool { return tus[i].Path < tus[j].Path })

	if len(tus) == 0 {
		err := ferror.New(ferror.NoSources, "member %q: no source files under %v", ec.Member, ec.SrcRoots)
		if ec.WarningsAsErrors {
			return Result{}, err
		}
		// Non-fatal by default; callers still receive the NoSources error so
		// the front end can choose to print it as a warning.
		return Result{TUs: nil, IncludeRoots: normalizeIncludeRoots(ec)}, err
	}

	return Result{TUs: tus, IncludeRoots: normalizeIncludeRoots(ec)}, nil
}

func normalizeIncludeRoots(ec config.EffectiveConfig) []string {
	out := make([]string, 0, len(ec.IncludeRoots))
	for _, r := range ec.IncludeRoots {
		p := r
		if !filepath.IsAbs(p) {
			p = filepath.Join(ec.Root, r)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// isSourceFile reports whether name has a recognized source suffix, matched
// with a compiled glob so the suffix set could later be extended to
// richer patterns without changing the walk logic.
var suffixGlobs = compileSuffixGlobs()

func compileSuffixGlobs() []glob.Glob {
	globs := make([]glob.Glob, 0, len(recognizedSuffixes))
	for suf := range recognizedSuffixes {
		globs = append(globs, glob.MustCompile("*"+suf))
	}
	return globs
}

func isSourceFile(name string) bool {
	for _, g := range suffixGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// walkSourceRoot performs a non-recursive walk of root (descending into
// subdirectories, but a symbolic-link cycle is detected via a set of
// visited directories' resolved real paths and skipped rather than followed
// forever).
func walkSourceRoot(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferror.Wrap(ferror.ScanIO, err, "stat source root %s", root)
	}
	if !info.IsDir() {
		return nil, ferror.New(ferror.ScanIO, "source root %s is not a directory", root)
	}

	visited := map[string]bool{}
	var out []string

	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				real, statErr := filepath.EvalSymlinks(osPathname)
				if statErr == nil {
					if visited[real] {
						return filepath.SkipDir
					}
					visited[real] = true
				}
				return nil
			}
			if !de.IsRegular() && !de.IsSymlink() {
				return nil
			}
			if isSourceFile(osPathname) {
				abs, absErr := filepath.Abs(osPathname)
				if absErr != nil {
					abs = osPathname
				}
				real, evalErr := filepath.EvalSymlinks(abs)
				if evalErr == nil {
					abs = real
				}
				out = append(out, filepath.Clean(abs))
			}
			return nil
		},
		Unsorted:            true,
		FollowSymbolicLinks: true,
		ErrorCallback: func(_ string, err error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, ferror.Wrap(ferror.ScanIO, err, "walking source root %s", root)
	}

	return out, nil
}

// SourceExtension extracts the recognized suffix from a path, or "" if none
// matches; useful for object-path derivation.
func SourceExtension(path string) string {
	for suf := range recognizedSuffixes {
		if strings.HasSuffix(path, suf) {
			return suf
		}
	}
	return ""
}
