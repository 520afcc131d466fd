package middleware

import (
	"context"

	"github.com/healthassess/secure-gateway/services/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for verified credential claims
	ClaimsKey contextKey = "claims"

	// ClientIPKey is the context key for the resolved client address
	ClientIPKey contextKey = "client_ip"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves verified claims from context
func GetClaimsFromContext(ctx context.Context) *token.Claims {
	if val, ok := ctx.Value(ClaimsKey).(*token.Claims); ok {
		return val
	}
	return nil
}

// WithClaims adds verified claims to the context
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClientIPFromContext retrieves the resolved client address
func GetClientIPFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(ClientIPKey).(string); ok {
		return val
	}
	return ""
}

// WithClientIP adds the resolved client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}
