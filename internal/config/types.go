// Package config implements the Configuration Resolver: it reads forge.toml
// documents and merges workspace, member, profile, cross, and request-line
// settings into one EffectiveConfig per targeted member.
package config

// Profile is a named optimization/debug/LTO bundle layered onto base flags.
type Profile struct {
	OptLevel   string   `mapstructure:"opt_level"`
	DebugInfo  bool     `mapstructure:"debug_info"`
	LTO        bool     `mapstructure:"lto"`
	ExtraFlags []string `mapstructure:"extra_flags"`
}

// defaultProfiles returns the two profiles every document recognizes even
// when [profiles.*] is absent.
func defaultProfiles() map[string]Profile {
	return map[string]Profile{
		"debug":   {OptLevel: "0", DebugInfo: true, LTO: false},
		"release": {OptLevel: "2", DebugInfo: false, LTO: true},
	}
}

// Cross holds cross-compilation overrides from [cross] and/or the request.
type Cross struct {
	Target     string   `mapstructure:"target"`
	Toolchain  string   `mapstructure:"toolchain"`
	Sysroot    string   `mapstructure:"sysroot"`
	ExtraFlags []string `mapstructure:"extra_flags"`
	// LibraryPaths is not a distinct forge.toml key: operators express
	// cross-specific search paths as -L entries in extra_flags, which are
	// prepended ahead of [compiler].library_paths by applyCross.
	LibraryPaths []string `mapstructure:"-"`
}

// BuildSection is [build].
type BuildSection struct {
	Compiler       string `mapstructure:"compiler"`
	Target         string `mapstructure:"target"`
	Jobs           int    `mapstructure:"jobs"`
	DefaultProfile string `mapstructure:"default_profile"`
}

// PathsSection is [paths].
type PathsSection struct {
	Src     stringList `mapstructure:"src"`
	Include stringList `mapstructure:"include"`
	Build   string     `mapstructure:"build"`
}

// CompilerSection is [compiler].
type CompilerSection struct {
	Flags             []string          `mapstructure:"flags"`
	Definitions       map[string]string `mapstructure:"definitions"`
	LibraryPaths      []string          `mapstructure:"library_paths"`
	Libraries         []string          `mapstructure:"libraries"`
	WarningsAsErrors  bool              `mapstructure:"warnings_as_errors"`
}

// WorkspaceSection is [workspace].
type WorkspaceSection struct {
	Members      []string            `mapstructure:"members"`
	Exclude      []string            `mapstructure:"exclude"`
	Dependencies map[string][]string `mapstructure:"dependencies"`
}

// Document is the parsed shape of one forge.toml file.
type Document struct {
	Build     BuildSection               `mapstructure:"build"`
	Paths     PathsSection               `mapstructure:"paths"`
	Compiler  CompilerSection            `mapstructure:"compiler"`
	Profiles  map[string]Profile         `mapstructure:"profiles"`
	Cross     Cross                      `mapstructure:"cross"`
	Workspace WorkspaceSection           `mapstructure:"workspace"`
}

// stringList decodes either a single TOML string or a list of strings into
// a []string, matching the "string or list of strings" option shape used by
// [paths].
type stringList []string

// EffectiveConfig is the fully merged configuration for one member, the
// output of Resolve.
type EffectiveConfig struct {
	Member           string
	Root             string // absolute path to the member's root directory
	Profile          string
	Compiler         string
	TargetName       string // output binary/library name ([build].target)
	Jobs             int
	SrcRoots         []string
	IncludeRoots     []string
	BuildRoot        string
	Flags            []string
	Definitions      map[string]string
	LibraryPaths     []string
	Libraries        []string
	WarningsAsErrors bool
	Cross            Cross
	DependsOn        []string // other member names this member depends on
}
