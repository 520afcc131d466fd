package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/services/ratelimit"
	"github.com/healthassess/secure-gateway/services/threat"
	"github.com/healthassess/secure-gateway/utils"
)

// SecurityMiddleware carries the ambient per-request security concerns:
// request ids, client address resolution, metadata scoring, and rate
// limiting for routes not driven through the gateway pipeline.
type SecurityMiddleware struct {
	limiter *ratelimit.Service
	monitor *threat.Monitor
	logger  *zap.Logger
}

// NewSecurityMiddleware creates a new SecurityMiddleware
func NewSecurityMiddleware(limiter *ratelimit.Service, monitor *threat.Monitor, logger *zap.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		limiter: limiter,
		monitor: monitor,
		logger:  logger,
	}
}

// RequestID assigns each request a uuid and exposes it on the response.
func (m *SecurityMiddleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// ClientIP resolves the caller address from forwarding headers, falling
// back to the socket peer, and stores it in the context. Forwarded chains
// keep only the first hop.
func (m *SecurityMiddleware) ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ResolveClientIP(r))))
	})
}

// Analyze scores request metadata for automation signatures. Findings are
// recorded as informational threat events and never block here.
func (m *SecurityMiddleware) Analyze(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIPFromContext(r.Context())
		principalID := ""
		if claims := GetClaimsFromContext(r.Context()); claims != nil {
			principalID = claims.Subject
		}
		m.monitor.AnalyzeRequest(ip, r.UserAgent(), r.URL.Path, principalID)
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces the per-identifier windows on routes outside the
// gateway pipeline, such as login. Denials get a 429 with a retry hint.
func (m *SecurityMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIPFromContext(r.Context())
		if ip == "" {
			ip = ResolveClientIP(r)
		}

		decision, err := m.limiter.Check(r.Context(), ip)
		if err != nil {
			m.logger.Error("rate check failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w)
			return
		}
		if !decision.Allowed {
			m.logger.Warn("request rate limited",
				zap.String("client_ip", ip),
				zap.String("reason", decision.Reason))
			_ = utils.WriteTooManyRequests(w, int(decision.RetryAfter.Seconds()), map[string]interface{}{
				"reason": decision.Reason,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders attaches the hardening headers to every response.
func (m *SecurityMiddleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// ResolveClientIP extracts the caller address from X-Forwarded-For, then
// X-Real-IP, then the socket peer.
func ResolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
