package config

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/workspace"
)

// Request is the front-end request record described in the external
// interfaces section: root directory, selected members (nil/empty means
// "all"), profile name, parallelism override, and cross overrides.
type Request struct {
	Root         string
	Members      []string
	Profile      string
	Jobs         int
	CrossTarget  string
	CrossChain   string
	CrossSysroot string
}

// Resolve loads forge.toml at req.Root and returns one EffectiveConfig per
// targeted member, in workspace-topological order (deterministic ties
// broken by declared member order).
func Resolve(fsys afero.Fs, req Request) ([]EffectiveConfig, error) {
	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, ferror.Wrap(ferror.ConfigMissing, err, "resolving root %s", req.Root)
	}

	rootDoc, err := loadDocument(fsys, documentPath(root))
	if err != nil {
		return nil, err
	}

	if len(rootDoc.Workspace.Members) == 0 {
		ec, err := resolveSingle(root, "", rootDoc, req)
		if err != nil {
			return nil, err
		}
		return []EffectiveConfig{ec}, nil
	}

	return resolveWorkspace(fsys, root, rootDoc, req)
}

func resolveWorkspace(fsys afero.Fs, root string, rootDoc *Document, req Request) ([]EffectiveConfig, error) {
	excluded := make(map[string]bool, len(rootDoc.Workspace.Exclude))
	for _, name := range rootDoc.Workspace.Exclude {
		excluded[name] = true
	}

	var allMembers []string
	for _, name := range rootDoc.Workspace.Members {
		if excluded[name] {
			continue
		}
		allMembers = append(allMembers, name)
	}

	order, err := workspace.TopologicalOrder(allMembers, rootDoc.Workspace.Dependencies)
	if err != nil {
		return nil, err
	}

	scope := memberScope(req.Members)

	memberDocs := make(map[string]*Document, len(allMembers))
	for _, name := range allMembers {
		memberRoot := filepath.Join(root, name)
		doc, err := loadDocument(fsys, documentPath(memberRoot))
		if err != nil {
			if ferror.KindOf(err) == ferror.ConfigMissing {
				return nil, ferror.New(ferror.MemberMissing, "workspace member %q has no %s", name, DocumentName)
			}
			return nil, err
		}
		memberDocs[name] = doc
	}

	var out []EffectiveConfig
	for _, name := range order {
		if scope != nil && !scope[name] {
			continue
		}
		memberRoot := filepath.Join(root, name)
		merged := mergeDocuments(rootDoc, memberDocs[name])
		ec, err := resolveSingle(memberRoot, name, merged, req)
		if err != nil {
			return nil, err
		}
		ec.DependsOn = append([]string{}, rootDoc.Workspace.Dependencies[name]...)
		out = append(out, ec)
	}
	return out, nil
}

// memberScope turns a request's member selection into a lookup set, or nil
// when the request targets every member ("all").
func memberScope(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	scope := make(map[string]bool, len(names))
	for _, n := range names {
		scope[n] = true
	}
	return scope
}

// mergeDocuments merges a workspace base document into a member override
// document per the scalar-replace/list-concatenate/map-merge rule: scalar
// fields replace, list fields concatenate with the member's list after the
// workspace's, and maps merge with member keys winning on collision.
func mergeDocuments(base, member *Document) *Document {
	out := &Document{
		Build:     member.Build,
		Paths:     member.Paths,
		Cross:     mergeCross(base.Cross, member.Cross),
		Workspace: base.Workspace,
	}
	if out.Build.Compiler == "" {
		out.Build.Compiler = base.Build.Compiler
	}
	if out.Build.Jobs == 0 {
		out.Build.Jobs = base.Build.Jobs
	}
	if out.Build.DefaultProfile == "" {
		out.Build.DefaultProfile = base.Build.DefaultProfile
	}
	if len(out.Paths.Src) == 0 {
		out.Paths.Src = base.Paths.Src
	} else {
		out.Paths.Src = append(append(stringList{}, base.Paths.Src...), out.Paths.Src...)
	}
	if len(out.Paths.Include) == 0 {
		out.Paths.Include = base.Paths.Include
	} else {
		out.Paths.Include = append(append(stringList{}, base.Paths.Include...), out.Paths.Include...)
	}
	if out.Paths.Build == "" {
		out.Paths.Build = base.Paths.Build
	}

	out.Compiler = CompilerSection{
		Flags:            append(append([]string{}, base.Compiler.Flags...), member.Compiler.Flags...),
		LibraryPaths:     append(append([]string{}, base.Compiler.LibraryPaths...), member.Compiler.LibraryPaths...),
		Libraries:        append(append([]string{}, base.Compiler.Libraries...), member.Compiler.Libraries...),
		WarningsAsErrors: base.Compiler.WarningsAsErrors || member.Compiler.WarningsAsErrors,
		Definitions:      mergeStringMaps(base.Compiler.Definitions, member.Compiler.Definitions),
	}

	out.Profiles = mergeProfiles(base.Profiles, member.Profiles)
	return out
}

func mergeStringMaps(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeProfiles(base, override map[string]Profile) map[string]Profile {
	out := make(map[string]Profile, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// resolveSingle produces the EffectiveConfig for one member (or the root
// project when there is no workspace), applying the profile and cross
// overrides and request-line overrides last.
func resolveSingle(memberRoot string, memberName string, doc *Document, req Request) (EffectiveConfig, error) {
	profileName := req.Profile
	if profileName == "" {
		profileName = doc.Build.DefaultProfile
	}
	if profileName == "" {
		profileName = "debug"
	}

	profiles := defaultProfiles()
	for k, v := range doc.Profiles {
		profiles[k] = v
	}
	profile, ok := profiles[profileName]
	if !ok {
		return EffectiveConfig{}, ferror.New(ferror.UnknownProfile, "unknown profile %q", profileName)
	}

	if doc.Build.Compiler == "" {
		return EffectiveConfig{}, ferror.New(ferror.ConfigParse, "%s: [build].compiler is required", documentPath(memberRoot))
	}
	if doc.Build.Target == "" {
		return EffectiveConfig{}, ferror.New(ferror.ConfigParse, "%s: [build].target is required", documentPath(memberRoot))
	}

	jobs := req.Jobs
	if jobs == 0 {
		jobs = doc.Build.Jobs
	}
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}

	buildRoot := doc.Paths.Build
	if buildRoot == "" {
		buildRoot = "build"
	}

	srcRoots := []string(doc.Paths.Src)
	if len(srcRoots) == 0 {
		srcRoots = []string{"src"}
	}

	flags := append([]string{}, doc.Compiler.Flags...)
	flags = append(flags, profileFlags(profile)...)
	flags = append(flags, profile.ExtraFlags...)

	libPaths := append([]string{}, doc.Cross.LibraryPaths...)
	libPaths = append(libPaths, doc.Compiler.LibraryPaths...)

	ec := EffectiveConfig{
		Member:           memberName,
		Root:             memberRoot,
		Profile:          profileName,
		Compiler:         doc.Build.Compiler,
		TargetName:       doc.Build.Target,
		Jobs:             jobs,
		SrcRoots:         srcRoots,
		IncludeRoots:     []string(doc.Paths.Include),
		BuildRoot:        filepath.Join(memberRoot, buildRoot, profileName),
		Flags:            flags,
		Definitions:      cloneMap(doc.Compiler.Definitions),
		LibraryPaths:     libPaths,
		Libraries:        doc.Compiler.Libraries,
		WarningsAsErrors: doc.Compiler.WarningsAsErrors,
	}

	cross := mergeCross(doc.Cross, Cross{
		Target:    req.CrossTarget,
		Toolchain: req.CrossChain,
		Sysroot:   req.CrossSysroot,
	})
	applyCross(&ec, cross)

	return ec, nil
}

// profileFlags translates a profile's opt_level/debug_info/lto fields into
// the compiler flags they imply, ahead of its extra_flags.
func profileFlags(p Profile) []string {
	var flags []string
	if p.OptLevel != "" {
		flags = append(flags, "-O"+p.OptLevel)
	}
	if p.DebugInfo {
		flags = append(flags, "-g")
	}
	if p.LTO {
		flags = append(flags, "-flto")
	}
	return flags
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
