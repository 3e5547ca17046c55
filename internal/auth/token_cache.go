package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// TokenCache 把 JWT 的解析结果（含角色）缓存在 Redis 里。
// 订单查询的视角过滤和审计的 actor 归属每个请求都要用到角色，
// 缓存命中后省掉签名校验，也不必回库查角色。
// 键前缀由哈希环决定，同一 token 固定落在同一个鉴权节点。
type TokenCache struct {
	rdb  radix.Client
	ring *NodeRing
	ttl  time.Duration
}

// NewTokenCache 构建缓存。ttl 不合法时退回 10 分钟，
// 需要短于 token 本身的有效期，过期后走正常解析回填。
func NewTokenCache(rdb radix.Client, ring *NodeRing, ttl time.Duration) *TokenCache {
	if ring == nil {
		ring = NewNodeRing(nil, 0)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenCache{rdb: rdb, ring: ring, ttl: ttl}
}

// 键里只放 token 摘要，原始 token 不落 Redis
func (c *TokenCache) key(token string) string {
	sum := sha1.Sum([]byte(token))
	return fmt.Sprintf("auth:jwt:%s:%s", c.ring.GetNode(token), hex.EncodeToString(sum[:]))
}

// Get 读取缓存的 claims，未命中返回 (nil, false, nil)
func (c *TokenCache) Get(ctx context.Context, token string) (*Claims, bool, error) {
	if c.rdb == nil {
		return nil, false, nil
	}
	k := c.key(token)
	var raw string
	if err := c.rdb.Do(radix.Cmd(&raw, "GET", k)); err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		// 脏数据当作未命中，清掉让调用方重新解析回填
		_ = c.rdb.Do(radix.Cmd(nil, "DEL", k))
		return nil, false, nil
	}
	return &claims, true, nil
}

// Set 回填解析结果
func (c *TokenCache) Set(ctx context.Context, token string, claims *Claims) error {
	if c.rdb == nil || claims == nil {
		return nil
	}
	body, _ := json.Marshal(claims)
	return c.rdb.Do(radix.FlatCmd(nil, "SETEX", c.key(token), int64(c.ttl/time.Second), body))
}
