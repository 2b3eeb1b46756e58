package config

import "path/filepath"

// applyCross rewrites the compiler command and flags according to the
// resolved cross-compilation settings. See the Open Questions note in
// SPEC_FULL.md: a toolchain value is treated as a command prefix, not a
// directory; an implementer may also accept a directory form, but this
// implementation follows the prefix interpretation.
func applyCross(ec *EffectiveConfig, cross Cross) {
	ec.Cross = cross
	if cross.Toolchain != "" {
		if filepath.IsAbs(ec.Compiler) {
			// Absolute compiler paths are left intact.
		} else {
			ec.Compiler = cross.Toolchain + filepath.Base(ec.Compiler)
		}
	}
	if cross.Sysroot != "" {
		ec.Flags = append(ec.Flags, "--sysroot="+cross.Sysroot)
	}
	if len(cross.ExtraFlags) > 0 {
		ec.Flags = append(append([]string{}, cross.ExtraFlags...), ec.Flags...)
	}
}

// mergeCross merges a file-declared [cross] block with request overrides,
// field by field: a non-empty override scalar wins, and override extra_flags
// are appended after the base block's.
func mergeCross(base Cross, override Cross) Cross {
	out := base
	if override.Target != "" {
		out.Target = override.Target
	}
	if override.Toolchain != "" {
		out.Toolchain = override.Toolchain
	}
	if override.Sysroot != "" {
		out.Sysroot = override.Sysroot
	}
	if len(override.ExtraFlags) > 0 {
		out.ExtraFlags = append(append([]string{}, base.ExtraFlags...), override.ExtraFlags...)
	}
	return out
}
