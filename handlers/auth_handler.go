package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/middleware"
	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/account"
	"github.com/healthassess/secure-gateway/services/token"
	"github.com/healthassess/secure-gateway/utils"
)

// AuthHandler handles credential exchange and session endpoints.
type AuthHandler struct {
	accounts *account.Service
	tokens   *token.Service
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *account.Service, tokens *token.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/v1/auth/login.
// Exchanges a username/password (plus MFA code when the account requires it)
// for an access/refresh token pair.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteDomainError(w, err)
		return
	}

	principal, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password, req.MFACode)
	if err != nil {
		h.logger.Info("login rejected",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("client_ip", middleware.GetClientIPFromContext(r.Context())))
		_ = utils.WriteDomainError(w, err)
		return
	}

	pair, err := h.tokens.Issue(principal)
	if err != nil {
		h.logger.Error("token issuance failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
		return
	}

	h.logger.Info("login succeeded",
		zap.String("principal_id", principal.ID),
		zap.String("role", string(principal.Role)))

	_ = utils.WriteOK(w, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"principal":     principal.Summary(),
	})
}

// HandleRefresh handles POST /api/v1/auth/refresh.
// A valid refresh token yields a fresh pair with permissions re-read from
// the registry; deactivated principals are refused.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteDomainError(w, err)
		return
	}

	pair, err := h.tokens.Refresh(req.RefreshToken, func(id string) (*models.Principal, error) {
		return h.accounts.Lookup(r.Context(), id)
	})
	if err != nil {
		_ = utils.WriteDomainError(w, err)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
	})
}

// HandleLogout handles POST /api/v1/auth/logout.
// Tokens are stateless and carry their own expiry, so logout is an audit
// event rather than a revocation.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims != nil {
		h.logger.Info("logout",
			zap.String("principal_id", claims.Subject),
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
	}
	_ = utils.WriteOK(w, map[string]interface{}{"message": "logged out"})
}

// HandleMe handles GET /api/v1/auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"id":          claims.Subject,
		"username":    claims.Username,
		"email":       claims.Email,
		"role":        claims.Role,
		"permissions": claims.Permissions,
	})
}
