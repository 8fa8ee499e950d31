package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragline/ragline/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests/second per client IP when
	// the server config does not set one.
	defaultRateLimit = 10
	// defaultRateBurst is the per-IP burst allowance; short spikes under
	// this size pass without rejection.
	defaultRateBurst = 20

	// visitorTTL is how long an idle client's bucket is kept before the
	// sweeper reclaims it.
	visitorTTL = 5 * time.Minute
	// sweepInterval is how often the sweeper scans for idle clients.
	sweepInterval = time.Minute
)

// visitor pairs a client IP's token bucket with its last activity time.
type visitor struct {
	bucket *rate.Limiter
	seen   time.Time
}

// ipRateLimiter hands each client IP an independent token bucket. Idle
// buckets are swept periodically so the map stays bounded by the set of
// recently active clients.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// newIPRateLimiter builds the limiter and starts its sweeper goroutine.
// Calling the returned stop function terminates the sweeper.
func newIPRateLimiter(rps float64, burst int, log *slog.Logger) (*ipRateLimiter, func()) {
	rl := &ipRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()

	return rl, func() { close(done) }
}

// allow takes one token from ip's bucket, creating the bucket on first sight.
func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	rl.mu.Unlock()

	return v.bucket.Allow()
}

// sweep drops buckets that have been idle longer than visitorTTL.
func (rl *ipRateLimiter) sweep() {
	cutoff := time.Now().Add(-visitorTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// limit rejects requests whose client IP is out of tokens with 429 and a
// Retry-After hint; everything else passes through to next.
func (rl *ipRateLimiter) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// remoteIP strips the port from the connection's remote address. It reads
// RemoteAddr directly rather than X-Forwarded-For, which an unauthenticated
// client could forge to dodge its bucket.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
