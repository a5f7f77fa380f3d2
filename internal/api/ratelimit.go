package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"snake-arena/internal/metrics"
)

// RateLimitConfig sizes the per-IP token buckets guarding the REST API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// Buckets idle for two intervals are dropped.
	CleanupInterval time.Duration
}

var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// LimiterStats counts decisions made by an IPRateLimiter.
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
}

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	quit     chan struct{}
	quitOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewIPRateLimiter builds a limiter and starts the goroutine that forgets
// idle clients. Call Stop to end it.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		quit:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.quitOnce.Do(func() { close(rl.quit) })
}

// Allow takes one token from ip's bucket.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.seen = rl.now()
	rl.mu.Unlock()

	if b.lim.Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

func (rl *IPRateLimiter) sweepLoop() {
	t := time.NewTicker(rl.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.sweep()
		case <-rl.quit:
			return
		}
	}
}

func (rl *IPRateLimiter) sweep() {
	cutoff := rl.now().Add(-2 * rl.cfg.CleanupInterval)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Tracked returns how many client buckets are held.
func (rl *IPRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *IPRateLimiter) Stats() LimiterStats {
	return LimiterStats{Allowed: rl.allowed.Load(), Rejected: rl.rejected.Load()}
}

// Middleware answers 429 once the caller's bucket is empty.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.Allow(ClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		metrics.RecordConnectionRejected("rate_limit")
		w.Header().Set("Retry-After", "1")
		writeError(w, "too many requests", http.StatusTooManyRequests)
	})
}

// ClientIP picks the caller address: the first X-Forwarded-For hop, then
// X-Real-IP, then the socket peer. The headers are trusted as sent, so the
// server is expected to sit behind a proxy that overwrites them.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ConnLimiter caps simultaneous websocket sessions per address.
type ConnLimiter struct {
	max int

	mu      sync.Mutex
	open    map[string]int
	refused atomic.Uint64
}

func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{max: maxPerIP, open: make(map[string]int)}
}

// Acquire reserves a slot for ip, reporting false at the cap.
func (cl *ConnLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.open[ip] >= cl.max {
		cl.refused.Add(1)
		return false
	}
	cl.open[ip]++
	return true
}

// Release frees a slot taken by Acquire.
func (cl *ConnLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	switch n := cl.open[ip]; {
	case n <= 1:
		delete(cl.open, ip)
	default:
		cl.open[ip] = n - 1
	}
}

func (cl *ConnLimiter) Open(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.open[ip]
}

// Refused counts Acquire calls turned away at the cap.
func (cl *ConnLimiter) Refused() uint64 { return cl.refused.Load() }

// newInputLimiter throttles one session's steering messages. A
// non-positive rate disables the check.
func newInputLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = int(perSecond)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// OriginChecker matches Origin headers against allowed patterns. A pattern
// ending in ":*" accepts any port; "*" accepts everything.
type OriginChecker struct {
	patterns []string
}

// DefaultAllowedOrigins are the local development origins.
var DefaultAllowedOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

func NewOriginChecker(patterns []string) *OriginChecker {
	if patterns == nil {
		patterns = DefaultAllowedOrigins
	}
	return &OriginChecker{patterns: patterns}
}

// Allowed reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are allowed.
func (oc *OriginChecker) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, p := range oc.patterns {
		switch {
		case p == "*":
			return true
		case strings.HasSuffix(p, ":*"):
			base := strings.TrimSuffix(p, ":*")
			if origin == base || strings.HasPrefix(origin, base+":") {
				return true
			}
		case origin == p:
			return true
		}
	}
	return false
}
