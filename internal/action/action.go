// Package action implements the Action Graph Builder: it turns a set of
// per-member effective configs and scanned translation units into a DAG of
// Compile and Link actions honoring workspace member dependencies.
package action

import (
	"fmt"
	"strings"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/scan"
)

// Kind distinguishes a Compile action from a Link action.
type Kind int

const (
	Compile Kind = iota
	Link
)

func (k Kind) String() string {
	if k == Link {
		return "link"
	}
	return "compile"
}

// Action is one DAG node: a compile of a single TU, or a link of a member's
// objects (plus the link outputs of members it depends on).
type Action struct {
	ID           string // "<member>:<kind>[:<tu-path>]", unique within a run
	ReportID     string // random UUID, the action_id surfaced to progress events
	Kind         Kind
	Member       string
	Config       config.EffectiveConfig
	TU           scan.TranslationUnit // zero value for Link actions
	ObjectPath   string               // Compile output / one Link input
	OutputPath   string               // Link output / Compile's own object path
	Inputs       []string             // Compile: [TU.Path]; Link: sorted object paths
	Key          string               // action key, see fingerprint.ActionKey
	Skippable    bool
	Predecessors []string // IDs
}

// Graph is the built action DAG: a flat, indexable node list plus adjacency
// computed from Predecessors, so workers operate on indices rather than
// owning pointers into a shared structure.
type Graph struct {
	Nodes []*Action
	index map[string]int
}

// ByID looks up a node's index by action ID.
func (g *Graph) ByID(id string) (*Action, int, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, 0, false
	}
	return g.Nodes[i], i, true
}

// Dependents returns the IDs of nodes whose Predecessors include id,
// looked up by scanning rather than a maintained reverse-edge set, keeping
// the graph a pure forward structure per the builder's design.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, n := range g.Nodes {
		for _, p := range n.Predecessors {
			if p == id {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}

// CompileActionID names a member's compile action for one TU.
func CompileActionID(member, tuPath string) string {
	return fmt.Sprintf("%s:compile:%s", member, tuPath)
}

// LinkActionID names a member's link action.
func LinkActionID(member string) string {
	return fmt.Sprintf("%s:link", member)
}

// objectPath derives an object path that cannot collide across members,
// since it is rooted under the member's own build-output root and mirrors
// the TU's path beneath the member root (source-root directory included).
func objectPath(ec config.EffectiveConfig, tuPath string) string {
	rel := strings.TrimPrefix(tuPath, ec.Root)
	rel = strings.TrimPrefix(rel, string('/'))
	ext := scan.SourceExtension(tuPath)
	base := strings.TrimSuffix(rel, ext)
	return ec.BuildRoot + "/" + base + ".o"
}

// isSharedTarget applies the link-command synthesis convention: a lib-
// prefixed target whose effective flags include -shared produces a shared
// object; otherwise an executable. There is no separate shared setting.
func isSharedTarget(ec config.EffectiveConfig) bool {
	if !strings.HasPrefix(ec.TargetName, "lib") {
		return false
	}
	for _, f := range ec.Flags {
		if f == "-shared" {
			return true
		}
	}
	return false
}

// LinkOutputPath derives the member's linked artifact path.
func LinkOutputPath(ec config.EffectiveConfig) string {
	name := ec.TargetName
	if isSharedTarget(ec) {
		return ec.BuildRoot + "/" + name + ".so"
	}
	return ec.BuildRoot + "/" + name
}
