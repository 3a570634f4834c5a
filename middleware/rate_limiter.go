// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

type RateLimiter struct {
	ips            map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             *sync.RWMutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
	exempt         map[string]bool
}

func NewRateLimiter() *RateLimiter {
	limiter := newRateLimiter(rate.Every(100*time.Millisecond), 20, 5*time.Minute) // 10 requests per second

	// Sponsor registration mutates the network; keep it slow
	limiter.SetEndpointLimit("/api/affiliate/register-parent", rate.Every(2*time.Second), 5)

	// Checkout services post sales in bursts
	limiter.SetEndpointLimit("/api/admin/affiliate/sales", rate.Every(10*time.Millisecond), 200)

	go limiter.cleanupBlockedIPs()

	return limiter
}

func newRateLimiter(limit rate.Limit, burst int, block time.Duration) *RateLimiter {
	return &RateLimiter{
		ips:            make(map[string]*rate.Limiter),
		blockedIPs:     make(map[string]time.Time),
		mu:             &sync.RWMutex{},
		defaultLimit:   limit,
		defaultBurst:   burst,
		blockDuration:  block,
		endpointLimits: make(map[string]endpointLimit),
		exempt:         map[string]bool{"/health": true, "/metrics": true},
	}
}

// SetEndpointLimit overrides the default limit for one route path
func (r *RateLimiter) SetEndpointLimit(path string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: limit, burst: burst}
}

func (r *RateLimiter) cleanupBlockedIPs() {
	for {
		time.Sleep(1 * time.Hour)
		r.mu.Lock()
		now := time.Now()
		for ip, blockUntil := range r.blockedIPs {
			if now.After(blockUntil) {
				r.resetLocked(ip)
			}
		}
		r.mu.Unlock()
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r.exempt[c.Request().URL.Path] {
				return next(c)
			}
			ip := c.RealIP()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if time.Now().Before(blockUntil) {
					r.mu.Unlock()
					return c.JSON(http.StatusTooManyRequests, map[string]string{
						"message":    "IP address blocked due to too many requests",
						"retryAfter": blockUntil.Format(time.RFC3339),
					})
				}
				// Block has expired; reset the limiter state
				r.resetLocked(ip)
			}
			limits, ok := r.endpointLimits[c.Path()]
			r.mu.Unlock()
			if !ok {
				limits = endpointLimit{limit: r.defaultLimit, burst: r.defaultBurst}
			}

			limiter := r.getLimiter(ip+"|"+c.Path(), limits.limit, limits.burst)
			if !limiter.Allow() {
				retryAfter := time.Now().Add(r.blockDuration)
				r.mu.Lock()
				r.blockedIPs[ip] = retryAfter
				r.mu.Unlock()

				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"message":    "Too many requests",
					"retryAfter": retryAfter.Format(time.RFC3339),
				})
			}

			return next(c)
		}
	}
}

// resetLocked forgets the block and every per-route limiter of an IP
func (r *RateLimiter) resetLocked(ip string) {
	delete(r.blockedIPs, ip)
	for key := range r.ips {
		if strings.HasPrefix(key, ip+"|") {
			delete(r.ips, key)
		}
	}
}

func (r *RateLimiter) getLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.ips[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		r.ips[key] = limiter
	}
	return limiter
}
