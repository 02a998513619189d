package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middlewares.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// Burst is the bucket size.
	Burst int
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per key. Entries idle for longer than
// idleTTL are dropped by the sweeper.
type limiterSet struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	buckets map[string]*keyedLimiter
}

const (
	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	s := &limiterSet{cfg: cfg, buckets: make(map[string]*keyedLimiter)}
	go func() {
		for {
			time.Sleep(sweepInterval)
			s.sweep(time.Now())
		}
	}()
	return s
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kl, ok := s.buckets[key]; ok {
		kl.lastSeen = time.Now()
		return kl.limiter
	}
	l := rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)
	s.buckets[key] = &keyedLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.buckets {
		if now.Sub(kl.lastSeen) > idleTTL {
			delete(s.buckets, key)
		}
	}
}

// RateLimiter returns an HTTP middleware that enforces a per-client-IP
// token-bucket limit and answers 429 once it is exceeded.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	set := newLimiterSet(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := set.get(clientIP(r))

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0, "rate limit exceeded")
				return
			}
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1, "rate limit exceeded")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

// DenialLimiter throttles callers that keep hitting permission denials.
// Every 403 produced downstream costs the caller's identity one token.
// Once the bucket is empty further requests get 429 until it refills.
// Requests without an Identity pass through untouched.
func DenialLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	set := newLimiterSet(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			limiter := set.get(id.TenantID.String() + "/" + id.Username)
			if limiter.Tokens() < 1 {
				writeTooManyRequests(w, retryAfter(cfg), "too many denied requests")
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.status == http.StatusForbidden {
				limiter.Allow()
			}
		})
	}
}

func retryAfter(cfg RateLimitConfig) int {
	if cfg.RequestsPerSecond <= 0 {
		return 0
	}
	return int(1/cfg.RequestsPerSecond) + 1
}

// statusWriter records the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// clientIP extracts the client address from RemoteAddr, stripping the port.
// X-Forwarded-For is ignored since clients can spoof it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int, message string) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusTooManyRequests,
		"message": message,
	})
}
