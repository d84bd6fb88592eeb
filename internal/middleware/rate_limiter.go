package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client IP may stay silent before its bucket is
// dropped. A returning client starts again with a full burst.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	mutex     sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int, idleTTL time.Duration) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   idleTTL,
		now:       time.Now,
	}
}

// allow reports whether ip may proceed. Idle buckets are swept at most once
// per idleTTL, on the request path.
func (r *rateLimiter) allow(ip string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		for key, v := range r.bucket {
			if now.Sub(v.lastSeen) >= r.idleTTL {
				delete(r.bucket, key)
			}
		}
		r.lastSweep = now
	}

	v, ok := r.bucket[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket)
}

// RateLimit allows rps requests per second per client IP with the given burst.
// Rejected requests get 429.
func RateLimit(rps float64, burst int, logger *zap.Logger) gin.HandlerFunc {
	if burst < 1 {
		burst = 1
	}
	return rateLimitWith(newRateLimiter(rate.Limit(rps), burst, limiterIdleTTL), logger)
}

func rateLimitWith(limiter *rateLimiter, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("rate_limiter")

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.allow(clientIP) {
			logger.Warn("too many requests", zap.String("ip", clientIP), zap.String("request_id", GetRequestID(c)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
