package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRingStableMapping(t *testing.T) {
	ring := NewNodeRing([]string{"node-a", "node-b", "node-c"}, 50)

	keys := []string{"token:1", "token:2", "token:3", "token:4"}
	first := make(map[string]string)
	for _, k := range keys {
		node := ring.GetNode(k)
		require.NotEmpty(t, node)
		first[k] = node
	}
	// 同一 key 始终落在同一节点
	for _, k := range keys {
		assert.Equal(t, first[k], ring.GetNode(k))
	}
}

func TestNodeRingAddNode(t *testing.T) {
	ring := NewNodeRing([]string{"node-a"}, 10)
	assert.Equal(t, "node-a", ring.GetNode("anything"))

	// 重复添加不产生重复虚拟节点
	before := len(ring.spots)
	ring.Add("node-a")
	assert.Equal(t, before, len(ring.spots))

	ring.Add("node-b")
	assert.Equal(t, before*2, len(ring.spots))
}

func TestNodeRingEmptyNodesFallback(t *testing.T) {
	ring := NewNodeRing(nil, 0)
	assert.Equal(t, "auth-node-default", ring.GetNode("token:x"))
}
