package fingerprint

import (
	"bytes"
	"encoding/hex"
	"io"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/forgebuild/forge/internal/ferror"
)

// salt is written ahead of the second digest's input so it diverges from
// the first; any fixed, arbitrary byte string works since the two digests
// only need to be independent of each other, not cryptographically keyed.
var salt = []byte{0x9e, 0x37, 0x79, 0xb9, 0x7f, 0x4a, 0x7c, 0x15}

// widen128 runs two independent xxhash digests over the same bytes and
// concatenates them into a 128-bit-class digest, since cespare/xxhash/v2 is
// a 64-bit primitive and the cache design calls for a wider digest to make
// collisions negligible across a large action/input population; any fast
// non-cryptographic hash is acceptable per the design, so this widening is
// a cheap way to get there without pulling in a second hash library.
func widen128(data []byte) []byte {
	a := xxhash.New()
	a.Write(data)

	b := xxhash.New()
	b.Write(salt)
	b.Write(data)

	out := make([]byte, 0, 16)
	out = append(out, a.Sum(nil)...)
	out = append(out, b.Sum(nil)...)
	return out
}

// HashFile content-hashes a file's bytes in a single streaming pass.
// Modification time is never used as a primary staleness signal, only as an
// optional fast-skip the caller may layer on top via StatUnchanged.
func HashFile(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", ferror.Wrap(ferror.CacheIO, err, "hashing %s", path)
	}
	defer f.Close()

	a := xxhash.New()
	b := xxhash.New()
	b.Write(salt)
	if _, err := io.Copy(io.MultiWriter(a, b), f); err != nil {
		return "", ferror.Wrap(ferror.CacheIO, err, "hashing %s", path)
	}
	out := append(a.Sum(nil), b.Sum(nil)...)
	return hex.EncodeToString(out), nil
}

// HashString hashes an arbitrary string, used for the canonicalized
// effective command line that becomes part of an action key/input set.
func HashString(s string) string {
	return hex.EncodeToString(widen128([]byte(s)))
}

// ActionKey computes the deterministic action key described in the
// fingerprint design: a 128-bit-class hash over the ordered identity
// fields, independent of map iteration order.
func ActionKey(fields ...string) string {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(0)
	}
	return hex.EncodeToString(widen128(buf.Bytes()))
}

// StatFile returns the current (size, mtime) of path, for recording and
// later fast-skip comparison against a cached FileStat.
func StatFile(fsys afero.Fs, path string) (FileStat, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return FileStat{}, ferror.Wrap(ferror.CacheIO, err, "stat %s", path)
	}
	return FileStat{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// StatUnchanged reports whether path's current size and mtime both match
// want, letting a caller skip a content re-hash for files that plainly
// haven't been touched; mtime is deliberately never used on its own.
func StatUnchanged(fsys afero.Fs, path string, want FileStat) bool {
	got, err := StatFile(fsys, path)
	if err != nil {
		return false
	}
	return got.Size == want.Size && got.ModTime == want.ModTime
}

// SortedEntries renders a map[string]string as "k=v" pairs in key-sorted
// order, for inclusion in an ActionKey field list (e.g. preprocessor
// definitions) so map iteration order never affects the key.
func SortedEntries(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
