package forgepath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/forgepath"
)

func TestNewAbsolutizesAndCleans(t *testing.T) {
	p, err := forgepath.New("/a/b/../c")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", p.String())
}

func TestJoinAndBaseAndDir(t *testing.T) {
	root, err := forgepath.New("/proj")
	require.NoError(t, err)

	member := root.Join("core")
	assert.Equal(t, "/proj/core", member.String())
	assert.Equal(t, "core", member.Base())
	assert.Equal(t, root.String(), member.Dir().String())
}

func TestRelativeTo(t *testing.T) {
	root, err := forgepath.New("/proj")
	require.NoError(t, err)
	member := root.Join("core", "src")

	rel, err := member.RelativeTo(root)
	require.NoError(t, err)
	assert.Equal(t, "core/src", rel)
}

func TestUnderRoot(t *testing.T) {
	root, err := forgepath.New("/proj")
	require.NoError(t, err)
	member := root.Join("core")
	sibling, err := forgepath.New("/elsewhere")
	require.NoError(t, err)

	assert.True(t, member.UnderRoot(root))
	assert.True(t, root.UnderRoot(root))
	assert.False(t, sibling.UnderRoot(root))
}
