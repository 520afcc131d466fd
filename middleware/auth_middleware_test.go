package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/rbac"
	"github.com/healthassess/secure-gateway/services/token"
)

func newTestTokens(t *testing.T) *token.Service {
	t.Helper()
	return token.NewService(token.Config{
		Secret:     []byte("middleware-test-secret"),
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, rbac.NewRegistry(rbac.DefaultPolicy()), zap.NewNop())
}

func issueCredential(t *testing.T, tokens *token.Service, role models.Role) string {
	t.Helper()
	pair, err := tokens.Issue(&models.Principal{
		ID:       "p-1",
		Username: "test",
		Role:     role,
		Active:   true,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestRequireAuth(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, zap.NewNop())

	var gotClaims *token.Claims
	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid credential passes and claims land in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+issueCredential(t, tokens, models.RoleDoctor))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "p-1", gotClaims.Subject)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage credential rejected with same body as missing", func(t *testing.T) {
		missing := httptest.NewRecorder()
		handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

		garbage := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-credential")
		handler.ServeHTTP(garbage, req)

		assert.Equal(t, http.StatusUnauthorized, garbage.Code)
		assert.Equal(t, missing.Body.String(), garbage.Body.String())
	})

	t.Run("refresh credential rejected on protected route", func(t *testing.T) {
		pair, err := tokens.Issue(&models.Principal{ID: "p-1", Role: models.RoleDoctor, Active: true})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	tokens := newTestTokens(t)
	m := NewAuthMiddleware(tokens, zap.NewNop())

	protected := m.RequireAuth(m.RequirePermission(models.PermAdminAccess)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	t.Run("admin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/security/summary", nil)
		req.Header.Set("Authorization", "Bearer "+issueCredential(t, tokens, models.RoleAdmin))
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("doctor forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/security/summary", nil)
		req.Header.Set("Authorization", "Bearer "+issueCredential(t, tokens, models.RoleDoctor))
		w := httptest.NewRecorder()

		protected.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestExtractBearerCredential(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
	}{
		"standard":      {"Bearer abc.def.ghi", "abc.def.ghi"},
		"lowercase":     {"bearer abc", "abc"},
		"missing":       {"", ""},
		"wrong scheme":  {"Basic dXNlcg==", ""},
		"no credential": {"Bearer", ""},
		"extra spacing": {"Bearer   abc  ", "abc"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, ExtractBearerCredential(req))
		})
	}
}
