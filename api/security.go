package api

import (
	"net/http"
	"sync"
	"time"

	"api_pos/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

// corsPolicy returns nil when no origin is allowed to call the API from a
// browser.
func corsPolicy(cfg config.HTTPConfig) gin.HandlerFunc {
	if len(cfg.CORSOrigins) == 0 {
		return nil
	}
	opts := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	}
	if cfg.AnyOrigin() {
		opts.AllowOriginFunc = func(string) bool { return true }
	} else {
		opts.AllowOrigins = cfg.CORSOrigins
	}
	return cors.New(opts)
}

// securityHeaders sets the response headers browsers use to sandbox an API.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'self'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		h.Set("X-DNS-Prefetch-Control", "off")
		c.Next()
	}
}

// limitBody caps request bodies at limit bytes. Reads past it fail with
// *http.MaxBytesError, which binding reports as 413.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter allows each client IP a burst of `burst` requests refilled
// evenly over the window.
type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(requests int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		visitors: map[string]*visitor{},
		every:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idle:     window,
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		// A visitor idle for a whole window has a full bucket again.
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// rateLimit rejects clients that exceed cfg.RateLimit requests per window
// with 429. It returns nil when limiting is disabled.
func rateLimit(cfg config.HTTPConfig, logger *zap.Logger) gin.HandlerFunc {
	if cfg.RateLimit <= 0 || cfg.RateLimitWindow <= 0 {
		return nil
	}
	limiter := newIPLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.allow(ip) {
			logger.Warn("rate limit exceeded",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("client_ip", ip),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: "too many requests from this IP, please try again later",
			})
			return
		}
		c.Next()
	}
}
