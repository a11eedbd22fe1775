package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// tokenBucket：令牌桶限流（每秒）
// 背景：由 RATE_LIMIT_ENABLED 开启，容量取 RATE_LIMIT_QPS
// 约束：每个整秒补满；不排队，超出直接返回 429
type tokenBucket struct {
	mu       sync.Mutex
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
}

func newTokenBucket(qps int, now func() time.Time) *tokenBucket {
	return &tokenBucket{capacity: qps, tokens: qps, lastSec: now().Unix(), now: now}
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if sec := tb.now().Unix(); sec != tb.lastSec {
		tb.lastSec = sec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func rateLimit(tb *tokenBucket) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tb.allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
