package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
	"golang.org/x/time/rate"
)

// RateLimiter はクライアントIPごとのトークンバケットでリクエスト数を制限する。
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

// visitor はクライアントごとのリミッタと最終アクセス日時。
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter は秒間requestsPerSecond件、最大burst件のリミッタを生成する。
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		ttl:      10 * time.Minute,
	}
}

// Allow はkeyのリクエストを許可するかどうかを返す。
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup は一定時間アクセスのないクライアントのリミッタを破棄する。
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.ttl)
	for key, v := range rl.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// Middleware はクライアントIPをキーにリクエスト数を制限するGinミドルウェアを返す。
func (rl *RateLimiter) Middleware(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			apperror.Abort(c, apperror.RateLimited(), debug)
			return
		}
		c.Next()
	}
}
