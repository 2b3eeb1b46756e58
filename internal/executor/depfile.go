package executor

import (
	"strings"
)

// parseDepFile extracts the prerequisite list from a Makefile-style
// dependency rule as emitted by -MMD/-MF ("target: dep1 dep2 \\\n  dep3"),
// returning every field after the colon (the rule's own target is the object
// file itself, before the colon, and is not part of the returned list).
func parseDepFile(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\\\n", " ")
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return nil
	}
	fields := strings.Fields(text[colon+1:])
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f)
	}
	return out
}
