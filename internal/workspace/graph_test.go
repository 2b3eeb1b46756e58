package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/workspace"
)

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	members := []string{"gui", "core", "util"}
	deps := map[string][]string{
		"gui": {"core"},
	}

	order, err := workspace.TopologicalOrder(members, deps)
	require.NoError(t, err)

	idx := make(map[string]int, len(order))
	for i, m := range order {
		idx[m] = i
	}
	assert.Less(t, idx["core"], idx["gui"], "core must build before gui")
}

func TestTopologicalOrderStableWithNoConstraints(t *testing.T) {
	members := []string{"z", "a", "m"}
	order, err := workspace.TopologicalOrder(members, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, order, "unconstrained members keep declared order")
}

func TestBuildGraphDetectsCycle(t *testing.T) {
	members := []string{"a", "b"}
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}

	_, err := workspace.BuildGraph(members, deps)
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigCycle, ferror.KindOf(err))
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	members := []string{"a", "b"}
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}

	_, err := workspace.TopologicalOrder(members, deps)
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigCycle, ferror.KindOf(err))
}

func TestBuildGraphRejectsUnknownMember(t *testing.T) {
	members := []string{"a"}
	deps := map[string][]string{
		"a": {"ghost"},
	}
	_, err := workspace.BuildGraph(members, deps)
	require.Error(t, err)
	assert.Equal(t, ferror.ConfigParse, ferror.KindOf(err))
}
