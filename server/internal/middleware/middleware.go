package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tokgraph/tokgraph/server/internal/auth"
	"github.com/tokgraph/tokgraph/server/internal/database"
)

// SecurityHeaders adds security headers to all responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// IPRateLimiter provides per-IP rate limiting using token bucket algorithm.
// X-Forwarded-For is client-controlled, so it is only honored when
// TrustForwardedFor is set, i.e. a trusted reverse proxy fronts the server.
type IPRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	TrustForwardedFor bool
}

// NewIPRateLimiter creates a new per-IP rate limiter
// rate is requests per second, burst is max burst size
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// getLimiter returns the rate limiter for the given IP, creating one if needed
func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[ip]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = rl.limiters[ip]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// Allow checks if a request from the given IP should be allowed
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

// Limit returns a middleware that rate limits requests by IP
func (rl *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP keys on the connection's remote address unless a trusted proxy
// supplies X-Forwarded-For, in which case the first hop wins.
func (rl *IPRateLimiter) clientIP(r *http.Request) string {
	if rl.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i >= 0 {
				xff = xff[:i]
			}
			return strings.TrimSpace(xff)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type contextKey string

const userKey contextKey = "user"

// UserFrom returns the authenticated user attached by RequireAPIKey.
func UserFrom(ctx context.Context) *database.User {
	user, _ := ctx.Value(userKey).(*database.User)
	return user
}

// RequireAPIKey authenticates requests by the X-API-Key header and stores
// the user in the request context.
func RequireAPIKey(db *database.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			http.Error(w, "Missing API key", http.StatusUnauthorized)
			return
		}

		user, err := auth.Verify(db, key)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidKey) {
				log.WithError(err).Error("api key verification failed")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}
