package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// Rate-limited route classes. Each class has its own per-client bucket, so a
// burst of saves never eats into a client's ask budget.
const (
	routeAsk       = "ask"
	routeSave      = "save"
	routeTranslate = "translate"
)

// clientIdleTTL is how long a client's buckets survive without traffic.
const clientIdleTTL = 5 * time.Minute

// Budget is one route class's per-client token bucket.
type Budget struct {
	// RPS is the sustained requests per second.
	RPS float64
	// Burst is the bucket size.
	Burst int
}

// RateBudgets configures the per-client limits of the rate-limited routes.
// Zero fields inherit from Default, and a zero Default keeps the built-in
// budget of each route.
type RateBudgets struct {
	// Default overrides every route's built-in budget.
	Default Budget
	// Ask applies to POST /api/ask, which calls the model up to three times.
	Ask Budget
	// Save applies to POST /api/articles, which calls the embedder once.
	Save Budget
	// Translate applies to POST /api/translate.
	Translate Budget
}

// builtinBudgets are used for any field left zero.
var builtinBudgets = map[string]Budget{
	routeAsk:       {RPS: 1, Burst: 3},
	routeSave:      {RPS: 5, Burst: 10},
	routeTranslate: {RPS: 2, Burst: 5},
}

// resolve returns the effective budget of every route class.
func (b RateBudgets) resolve() map[string]Budget {
	overrides := map[string]Budget{
		routeAsk:       b.Ask,
		routeSave:      b.Save,
		routeTranslate: b.Translate,
	}
	out := make(map[string]Budget, len(builtinBudgets))
	for route, eff := range builtinBudgets {
		for _, o := range []Budget{b.Default, overrides[route]} {
			if o.RPS > 0 {
				eff.RPS = o.RPS
			}
			if o.Burst > 0 {
				eff.Burst = o.Burst
			}
		}
		out[route] = eff
	}
	return out
}

// bucketKey identifies one client's bucket for one route class.
type bucketKey struct {
	route string
	ip    string
}

// clientBucket is a token bucket plus the last time it was used.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces per-client, per-route token buckets. Idle buckets are
// evicted every minute.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*clientBucket
	budgets map[string]Budget
	// rejected counts 429s by route; nil disables counting.
	rejected *prometheus.CounterVec
}

// newRateLimiter builds a rateLimiter from budgets and starts its eviction
// loop, which runs until the returned stop function is called.
func newRateLimiter(budgets RateBudgets, rejected *prometheus.CounterVec) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets:  make(map[bucketKey]*clientBucket),
		budgets:  budgets.resolve(),
		rejected: rejected,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// bucket returns the limiter for ip on route, creating it on first use.
func (rl *rateLimiter) bucket(route, ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := bucketKey{route: route, ip: ip}
	entry, ok := rl.buckets[key]
	if !ok {
		b := rl.budgets[route]
		entry = &clientBucket{limiter: rate.NewLimiter(rate.Limit(b.RPS), b.Burst)}
		rl.buckets[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict(time.Now().Add(-clientIdleTTL))
		}
	}
}

// evict drops buckets last used before cutoff.
func (rl *rateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// retryAfter is the whole number of seconds until route refills one token.
func (rl *rateLimiter) retryAfter(route string) string {
	rps := rl.budgets[route].RPS
	if rps <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))
}

// limit wraps next with the bucket of route. Rejected requests get 429 with
// Retry-After and the RATE_LIMITED error body.
func (rl *rateLimiter) limit(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.bucket(route, ip).Allow() {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("route", route),
				slog.String("ip", ip),
			)
			if rl.rejected != nil {
				rl.rejected.WithLabelValues(route).Inc()
			}
			w.Header().Set("Retry-After", rl.retryAfter(route))
			writeJSON(w, r, http.StatusTooManyRequests, errorBody{
				Error: "Too many " + route + " requests, please slow down.",
				Code:  codeRateLimited,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the remote host without its port. X-Forwarded-For is ignored;
// deployments behind a proxy share one bucket per route.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
