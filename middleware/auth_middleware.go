package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/token"
	"github.com/healthassess/secure-gateway/utils"
)

// AuthMiddleware verifies bearer credentials and enforces permissions on
// routes that are not driven through the gateway pipeline.
type AuthMiddleware struct {
	tokens *token.Service
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens *token.Service, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth rejects requests without a valid access credential and puts
// the verified claims into the request context. The 401 body is identical
// for missing, malformed, badly signed, and expired credentials.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		raw := ExtractBearerCredential(r)
		if raw == "" {
			m.logger.Warn("missing credential", zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w)
			return
		}

		claims, err := m.tokens.VerifyAccess(raw)
		if err != nil {
			m.logger.Warn("credential verification failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w)
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("principal_id", claims.Subject),
			zap.String("role", claims.Role))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects authenticated requests whose permission
// snapshot lacks the given permission. Must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", GetRequestIDFromContext(ctx)))
				_ = utils.WriteUnauthorized(w)
				return
			}

			if !claims.HasPermission(perm) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("principal_id", claims.Subject),
					zap.String("required_permission", string(perm)))
				_ = utils.WriteForbidden(w, "insufficient_permission")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractBearerCredential extracts the bearer credential from the
// Authorization header, or empty when absent or malformed.
func ExtractBearerCredential(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
