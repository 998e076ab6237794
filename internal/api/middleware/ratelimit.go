package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
)

// RateLimiter caps requests per client IP in fixed windows. Counters live in
// the shared cache when one is configured; if the cache fails or is absent
// the limiter counts in process memory.
type RateLimiter struct {
	cache  providers.CacheProvider
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	// peers whose X-Forwarded-For is believed
	trusted []netip.Prefix

	mu     sync.Mutex
	local  map[string]int64
	bucket int64
}

// NewRateLimiter creates a limiter. name namespaces the counters.
func NewRateLimiter(cache providers.CacheProvider, name string, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		cache:  cache,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
		local:  make(map[string]int64),
	}
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		bucket := now.UnixNano() / int64(l.window)
		count := l.count(r.Context(), l.clientIP(r), bucket)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		if count > int64(l.limit) {
			reset := time.Unix(0, (bucket+1)*int64(l.window))
			retryAfter := int(reset.Sub(now).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.limit)-count, 10))
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) count(ctx context.Context, ip string, bucket int64) int64 {
	if l.cache != nil {
		key := fmt.Sprintf("ratelimit:%s:%s:%d", l.name, ip, bucket)
		count, err := l.cache.Incr(ctx, key, int(l.window.Seconds())+1)
		if err == nil {
			return count
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("rate limit cache unavailable, counting locally")
	}
	return l.countLocal(ip, bucket)
}

func (l *RateLimiter) countLocal(ip string, bucket int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket != l.bucket {
		l.local = make(map[string]int64)
		l.bucket = bucket
	}
	l.local[ip]++
	return l.local[ip]
}

// TrustProxies lets the limiter read X-Forwarded-For from peers inside
// cidrs. A bare IP is taken as a single-host prefix.
func (l *RateLimiter) TrustProxies(cidrs []string) error {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		prefix, err := parseProxy(c)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", c, err)
		}
		prefixes = append(prefixes, prefix)
	}
	l.trusted = prefixes
	return nil
}

func parseProxy(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		return prefix.Masked(), err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (l *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range l.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP is the peer address. When the peer is a trusted proxy the
// forwarded chain is walked from the right and the first untrusted hop wins.
func (l *RateLimiter) clientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !l.isTrusted(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
