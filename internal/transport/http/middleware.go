package http

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quizzy-service/internal/domain"
	infraredis "quizzy-service/internal/infra/redis"
)

type sessionKey struct{}

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(token string) (domain.Session, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer <token>" header
// and stores the session in the request context.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: domain.ErrMissingToken.Message})
				return
			}
			session, err := authn.Authenticate(strings.TrimSpace(token))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: domain.ErrInvalidToken.Message})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
		})
	}
}

// SessionFrom returns the session stored by RequireAuth.
func SessionFrom(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domain.Session)
	return s, ok
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (infraredis.Decision, error)
}

// RateLimit applies limiter per client IP. Limiter failures let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Round(time.Second).Seconds())))
				writeJSON(w, http.StatusTooManyRequests, otpResponse{Success: false, Message: "Too many requests. Please try again later."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the peer address. Forwarding headers are applied earlier by TrustedRealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParseTrustedProxies accepts bare addresses and CIDR prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// TrustedRealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP, but only when the
// direct peer is one of trusted. The client is the rightmost forwarded hop that is not
// itself a trusted proxy. With no trusted proxies the headers are ignored.
func TrustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	isTrusted := func(addr netip.Addr) bool {
		addr = addr.Unmap()
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			peer, err := netip.ParseAddr(clientIP(r))
			if err != nil || !isTrusted(peer) {
				next.ServeHTTP(w, r)
				return
			}
			if ip, ok := forwardedClient(r, isTrusted); ok {
				r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(r *http.Request, isTrusted func(netip.Addr) bool) (netip.Addr, bool) {
	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return netip.Addr{}, false
		}
		if !isTrusted(addr) {
			return addr.Unmap(), true
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if addr, err := netip.ParseAddr(realIP); err == nil {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

// Instrument records request counts and latency per route pattern.
func Instrument(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
