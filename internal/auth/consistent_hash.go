package auth

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

// NodeRing 鉴权节点一致性哈希环。
// token 缓存键带节点前缀，同一 token 始终落在同一个鉴权节点上；
// 节点扩缩容时只有相邻区间的缓存失效，避免全量重建。
type NodeRing struct {
	mu           sync.RWMutex
	virtualSpots int
	spots        []uint32          // 已排序的虚拟节点哈希值
	owner        map[uint32]string // 虚拟节点 -> 真实节点
	members      map[string]struct{}
}

// NewNodeRing 构建哈希环。nodes 为空时落到单节点模式，
// virtualSpots 不合法时用默认倍数 50。
func NewNodeRing(nodes []string, virtualSpots int) *NodeRing {
	if virtualSpots <= 0 {
		virtualSpots = 50
	}
	if len(nodes) == 0 {
		nodes = []string{"auth-node-default"}
	}
	r := &NodeRing{
		virtualSpots: virtualSpots,
		owner:        make(map[uint32]string),
		members:      make(map[string]struct{}),
	}
	r.Add(nodes...)
	return r
}

// Add 添加节点，已存在的节点忽略
func (r *NodeRing) Add(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		if _, ok := r.members[node]; ok {
			continue
		}
		r.members[node] = struct{}{}
		for i := 0; i < r.virtualSpots; i++ {
			spot := crc32.ChecksumIEEE([]byte(node + "#" + strconv.Itoa(i)))
			r.spots = append(r.spots, spot)
			r.owner[spot] = node
		}
	}
	sort.Slice(r.spots, func(i, j int) bool { return r.spots[i] < r.spots[j] })
}

// GetNode 返回 key（通常是 token）归属的节点。
// 顺时针找到第一个虚拟节点，越过末尾则回绕到环首。
func (r *NodeRing) GetNode(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.spots) == 0 {
		return ""
	}
	h := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(r.spots), func(i int) bool { return r.spots[i] >= h })
	if idx == len(r.spots) {
		idx = 0
	}
	return r.owner[r.spots[idx]]
}
