package middlewares

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"portal-api/internal/utils/platformerrors"
)

const defaultLimiterEntries = 10000

// LimiterPool hands out one token bucket per key. Idle keys are evicted once
// the pool is full.
type LimiterPool struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

// NewLimiterPool allows perMinute requests per key with the given burst.
func NewLimiterPool(perMinute, burst, maxKeys int) (*LimiterPool, error) {
	if perMinute <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d/min burst %d", perMinute, burst)
	}
	if maxKeys <= 0 {
		maxKeys = defaultLimiterEntries
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, err
	}
	return &LimiterPool{
		limiters: cache,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}, nil
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters.Add(key, l)
	return l
}

// Reserve takes a token for key. When none is available it reports how long
// until one is.
func (p *LimiterPool) Reserve(key string) (bool, time.Duration) {
	r := p.get(key).Reserve()
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(pool *LimiterPool, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := pool.Reserve("ip:" + clientIP(c.ClientIP()))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)+1))
			platformerrors.WriteTooManyRequests(c, message)
			return
		}
		c.Next()
	}
}

// clientIP canonicalizes the address so equivalent spellings share a bucket.
func clientIP(raw string) string {
	if raw == "" {
		return "unknown"
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
