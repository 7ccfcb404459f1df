package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"resumatch/internal/errors"

	"golang.org/x/time/rate"
)

const defaultEvictAfter = 10 * time.Minute

// clientLimiter pairs a token bucket with the time it last served a request,
// so idle buckets can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key ("api:..." or "ip:...").
// Buckets that stay idle longer than evictAfter are dropped by a background
// sweep; a dropped client simply gets a fresh full bucket on its next request.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	perSecond  rate.Limit
	burst      int
	evictAfter time.Duration
	stop       chan struct{}
	logger     *errors.Logger
}

// NewRateLimiter builds a limiter allowing requestsPerMin sustained requests
// with the given burst capacity per client. evictAfter controls how long an
// idle client's bucket is retained; zero or negative falls back to ten minutes.
func NewRateLimiter(requestsPerMin int, evictAfter time.Duration, burst int, logger *errors.Logger) *RateLimiter {
	if evictAfter <= 0 {
		evictAfter = defaultEvictAfter
	}

	rl := &RateLimiter{
		clients:    make(map[string]*clientLimiter),
		perSecond:  rate.Limit(float64(requestsPerMin) / 60.0),
		burst:      burst,
		evictAfter: evictAfter,
		stop:       make(chan struct{}),
		logger:     logger,
	}

	go rl.sweepLoop()
	return rl
}

// Allow reports whether the client identified by key may proceed. It never
// blocks; a denied request should be answered with 429.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// GetStats returns current rate limiter statistics for the stats endpoint.
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_clients":  len(rl.clients),
		"rate_per_second": float64(rl.perSecond),
		"rate_per_minute": float64(rl.perSecond) * 60.0,
		"burst_capacity":  rl.burst,
	}
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.evictAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stop:
			return
		}
	}
}

// evictIdle drops buckets not seen since evictAfter ago. An evicted bucket
// would have refilled to full capacity by now anyway, so eviction does not
// grant anyone extra requests.
func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.evictAfter)
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}

	if rl.logger != nil {
		rl.logger.Debug("Rate limiter sweep completed",
			"active_clients", len(rl.clients))
	}
}

// Close stops the background sweep. Called once during server shutdown.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}

// rateLimitMiddleware enforces per-client limits on the wrapped handler.
// With rate limiting disabled it returns the handler unchanged.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// getRateLimitKey derives the bucket key for a request. API key identity is
// preferred over IP identity when both are enabled, so authenticated clients
// behind a shared NAT are not throttled collectively.
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				apiKey = after
			}
		}
		if apiKey != "" {
			return "api:" + apiKey
		}
	}

	if byIP {
		return "ip:" + getClientIP(r)
	}

	return ""
}

// getClientIP resolves the originating client address, trusting proxy headers
// before falling back to the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := firstValidIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// firstValidIP returns the first parseable address in a comma-separated list.
func firstValidIP(list string) string {
	for ip := range strings.SplitSeq(list, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
