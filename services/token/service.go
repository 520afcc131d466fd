// Package token issues and verifies the bearer credentials that carry
// principal identity, role, and a permission snapshot between requests.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
	"github.com/healthassess/secure-gateway/services/rbac"
)

const issuer = "secure-gateway"

// Kind distinguishes short-lived access credentials from refresh credentials.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload embedded in every issued credential. Permissions is
// a snapshot of the registry mapping at issuance time; registry changes never
// retroactively alter outstanding credentials.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	Kind        Kind     `json:"token_kind"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the snapshot contains the permission.
func (c *Claims) HasPermission(perm models.Permission) bool {
	for _, p := range c.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

// Pair bundles the two credentials handed out at login.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Config holds signing material and lifetimes.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service signs and verifies credentials with a fixed in-process secret.
// Verification is pure and requires no I/O.
type Service struct {
	cfg      Config
	registry *rbac.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a token service bound to the given permission registry.
func NewService(cfg Config, registry *rbac.Registry, logger *zap.Logger) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue creates an access/refresh credential pair for the principal. The
// access credential embeds the registry's permission set for the principal's
// role as it stands right now.
func (s *Service) Issue(principal *models.Principal) (*Pair, error) {
	if principal == nil || strings.TrimSpace(principal.ID) == "" {
		return nil, services.WrapInternal("cannot issue credential without principal", nil)
	}

	perms := s.registry.PermissionsFor(principal.Role)
	snapshot := make([]string, len(perms))
	for i, p := range perms {
		snapshot[i] = string(p)
	}

	access, err := s.sign(principal, snapshot, KindAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, services.WrapInternal("sign access credential", err)
	}
	refresh, err := s.sign(principal, nil, KindRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, services.WrapInternal("sign refresh credential", err)
	}

	s.logger.Debug("credentials issued",
		zap.String("principal_id", principal.ID),
		zap.String("role", string(principal.Role)),
		zap.Int("permissions", len(snapshot)))

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTTL.Seconds()),
	}, nil
}

// Verify checks signature and expiry of a raw credential and returns its
// claims. Failures map to exactly one of MalformedCredential,
// InvalidSignature, ExpiredCredential. Expiry is evaluated on its own so an
// expired-but-correctly-signed credential reports expiry, not a signature
// problem.
func (s *Service) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, services.ErrMalformedCredential
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, services.ErrMalformedCredential
		}
		return nil, services.ErrInvalidSignature
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, services.ErrInvalidSignature
	}

	now := s.now().UTC()
	if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Time) {
		return nil, services.ErrExpiredCredential
	}
	if claims.Issuer != issuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, services.ErrMalformedCredential
	}

	return claims, nil
}

// VerifyAccess verifies raw and additionally requires an access-kind
// credential; refresh credentials are not valid on protected routes.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != KindAccess {
		return nil, services.ErrMalformedCredential
	}
	return claims, nil
}

// Refresh exchanges a valid refresh credential for a fresh pair. The new
// access credential re-reads the registry, so a role-policy change takes
// effect here rather than on outstanding tokens.
func (s *Service) Refresh(rawRefresh string, lookup func(id string) (*models.Principal, error)) (*Pair, error) {
	claims, err := s.Verify(rawRefresh)
	if err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh {
		return nil, services.ErrMalformedCredential
	}

	principal, err := lookup(claims.Subject)
	if err != nil {
		return nil, err
	}
	if !principal.Active {
		return nil, services.ErrInvalidCredentials
	}
	return s.Issue(principal)
}

func (s *Service) sign(principal *models.Principal, perms []string, kind Kind, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Role:        string(principal.Role),
		Permissions: perms,
		Username:    principal.Username,
		Email:       principal.Email,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.Secret)
}
