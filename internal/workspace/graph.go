// Package workspace builds and validates the acyclic dependency graph
// between a workspace's member projects.
package workspace

import (
	"strings"

	"github.com/pyr-sh/dag"

	"github.com/forgebuild/forge/internal/ferror"
)

// BuildGraph constructs the member dependency DAG (edges point from a
// dependent member to the members it depends on) and validates it is
// acyclic, reporting the members of each cycle on failure.
func BuildGraph(members []string, dependencies map[string][]string) (*dag.AcyclicGraph, error) {
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m] = true
	}

	g := &dag.AcyclicGraph{}
	for _, m := range members {
		g.Add(m)
	}
	for from, deps := range dependencies {
		if !known[from] {
			return nil, ferror.New(ferror.ConfigParse, "workspace.dependencies references unknown member %q", from)
		}
		for _, to := range deps {
			if !known[to] {
				return nil, ferror.New(ferror.ConfigParse, "workspace.dependencies: member %q depends on unknown member %q", from, to)
			}
			g.Add(to)
			g.Connect(dag.BasicEdge(from, to))
		}
	}

	if err := g.Validate(); err != nil {
		return nil, ferror.Wrap(ferror.ConfigCycle, err, "cyclic workspace dependency: %s", describeCycles(g))
	}
	return g, nil
}

// describeCycles renders the graph's strongly-connected components of size
// greater than one as a human-readable cycle report.
func describeCycles(g *dag.AcyclicGraph) string {
	var parts []string
	for _, scc := range g.StronglyConnected() {
		if len(scc) < 2 {
			continue
		}
		names := make([]string, len(scc))
		for i, v := range scc {
			names[i] = dag.VertexName(v)
		}
		parts = append(parts, strings.Join(names, " -> "))
	}
	if len(parts) == 0 {
		return "unknown cycle"
	}
	return strings.Join(parts, "; ")
}

// TopologicalOrder returns members ordered so that a member always appears
// after every member it depends on. Members are visited depth-first in
// declared order, each emitted right after its not-yet-emitted dependencies,
// so the order is deterministic across runs and equals the declared order
// when no dependencies are declared; a dependency can be pulled ahead of an
// unrelated member declared before it.
func TopologicalOrder(members []string, dependencies map[string][]string) ([]string, error) {
	if _, err := BuildGraph(members, dependencies); err != nil {
		return nil, err
	}

	visited := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return ferror.New(ferror.ConfigCycle, "cyclic workspace dependency involving %q", name)
		}
		visited[name] = 1
		deps := append([]string{}, dependencies[name]...)
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, name)
		return nil
	}

	for _, m := range members {
		if err := visit(m); err != nil {
			return nil, err
		}
	}

	return order, nil
}
