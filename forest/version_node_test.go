package forest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionNodeRoundTrip(t *testing.T) {
	node := VersionNode{Parent: NullVersion, Children: []Version{1, 2, 3}}
	raw, err := decodeRawVersionNode(node.encode())
	require.NoError(t, err)
	require.Equal(t, node, raw.ToVersionNode())
	require.True(t, node.isRoot())
}

func TestVersionNodeWithChildAppended(t *testing.T) {
	node := newWithParent(7)
	node = node.withChildAppended(8)
	node = node.withChildAppended(9)
	require.Equal(t, []Version{8, 9}, node.Children)
	require.False(t, node.isRoot())
}

func TestVersionNodeRejectsLengthMismatch(t *testing.T) {
	node := VersionNode{Parent: NullVersion, Children: []Version{1, 2}}
	buf := node.encode()
	_, err := decodeRawVersionNode(buf[:len(buf)-1])
	require.Error(t, err)
}
