package middleware

import (
	"sync"
	"time"

	"github.com/kataras/iris/v12"
)

// TokenBucket 令牌桶。capacity 决定允许的突发量，
// ratePerSec 决定稳态吞吐，补充按整秒结算。
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     int64
	ratePerSec int64
	lastRefill time.Time
}

// NewTokenBucket 创建满桶的限流器
func NewTokenBucket(capacity, ratePerSec int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		ratePerSec: ratePerSec,
		lastRefill: time.Now(),
	}
}

// Allow 取一个令牌，取不到返回 false
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	refill := int64(now.Sub(tb.lastRefill).Seconds()) * tb.ratePerSec
	if refill > 0 {
		tb.tokens += refill
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimitMiddleware 超限请求直接以 429 截断
func RateLimitMiddleware(bucket *TokenBucket) iris.Handler {
	return func(ctx iris.Context) {
		if !bucket.Allow() {
			ctx.StopWithJSON(429, iris.Map{
				"code": 429,
				"msg":  "请求过于频繁，请稍后再试",
			})
			return
		}
		ctx.Next()
	}
}

// 流转接口每次都要锁行写库加发事件，单独给一个小桶；
// 查询类接口不经过这里
var transitionRateLimiter = NewTokenBucket(20, 10)

// TransitionRateLimit 状态流转接口限流
func TransitionRateLimit() iris.Handler {
	return RateLimitMiddleware(transitionRateLimiter)
}
