package server

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/everpage/internal/platform/errors"
)

// Rate limit applied to mutating endpoints, per client address.
const (
	rateLimitRequests = 10
	rateLimitWindow   = time.Minute
)

// rateLimiter is a sliding-window limiter keyed by client address.
type rateLimiter struct {
	mu      sync.Mutex
	seen    map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		seen:    make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
		gcEvery: window,
	}
}

// allow records one request for key and reports whether it fits the window.
func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	if now.Sub(l.lastGC) > l.gcEvery {
		for k, stamps := range l.seen {
			if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
				delete(l.seen, k)
			}
		}
		l.lastGC = now
	}

	stamps := l.seen[key]
	kept := stamps[:0]
	for _, stamp := range stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	if len(kept) >= l.limit {
		l.seen[key] = kept
		return false
	}
	l.seen[key] = append(kept, now)
	return true
}

// limitRate rejects clients that exceed the mutation rate limit.
func (l *rateLimiter) limitRate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r)) {
			writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the client address, honoring the first hop of
// X-Forwarded-For when a proxy sets it.
func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireBearer guards maintenance endpoints with a static bearer token.
func requireBearer(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token == "" || header != "Bearer "+token {
			writeError(w, r, apperrors.New(apperrors.CodeUnauthorized, "missing or invalid bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// logRequests writes one line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
