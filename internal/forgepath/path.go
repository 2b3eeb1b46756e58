// Package forgepath provides typed absolute-path wrappers so root, member,
// and build-output paths are never accidentally interchanged with a plain
// relative string.
package forgepath

import (
	"path/filepath"
	"strings"
)

// AbsoluteSystemPath is a filesystem path known to be absolute and
// OS-native-separated. The zero value is not valid; construct via New.
type AbsoluteSystemPath string

// New cleans and absolutizes raw relative to the process's working
// directory, returning an AbsoluteSystemPath.
func New(raw string) (AbsoluteSystemPath, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	return AbsoluteSystemPath(filepath.Clean(abs)), nil
}

// Join appends path elements and returns the resulting AbsoluteSystemPath.
func (p AbsoluteSystemPath) Join(elem ...string) AbsoluteSystemPath {
	parts := append([]string{string(p)}, elem...)
	return AbsoluteSystemPath(filepath.Join(parts...))
}

// Dir returns the parent directory.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(string(p)))
}

// Base returns the final path element.
func (p AbsoluteSystemPath) Base() string {
	return filepath.Base(string(p))
}

// String implements fmt.Stringer.
func (p AbsoluteSystemPath) String() string {
	return string(p)
}

// RelativeTo returns p expressed relative to base, using OS separators.
func (p AbsoluteSystemPath) RelativeTo(base AbsoluteSystemPath) (string, error) {
	return filepath.Rel(string(base), string(p))
}

// UnderRoot reports whether p is root or a descendant of root.
func (p AbsoluteSystemPath) UnderRoot(root AbsoluteSystemPath) bool {
	rel, err := p.RelativeTo(root)
	if err != nil {
		return false
	}
	if filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
