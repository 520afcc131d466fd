// Package account manages principals: credential verification, the MFA
// challenge step, and lifecycle changes like deactivation.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
)

const mfaCodeTTL = 5 * time.Minute

// PrincipalStore persists principals.
type PrincipalStore interface {
	FindByUsername(ctx context.Context, username string) (*models.Principal, error)
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	Create(ctx context.Context, principal *models.Principal) error
	Update(ctx context.Context, principal *models.Principal) error
}

type mfaChallenge struct {
	code    string
	expires time.Time
}

// Service authenticates principals against a store. Credential hashes use
// bcrypt; pending MFA codes live in memory with a short expiry.
type Service struct {
	store   PrincipalStore
	logger  *zap.Logger
	cost    int
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]mfaChallenge
}

// NewService creates an account service using the default bcrypt cost.
func NewService(store PrincipalStore, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
		pending: make(map[string]mfaChallenge),
	}
}

// SetCost overrides the bcrypt cost for subsequent hashing. Values outside
// the bcrypt range are ignored.
func (s *Service) SetCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
}

// HashCredential hashes a plaintext credential for storage.
func (s *Service) HashCredential(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", services.WrapInternal("hash credential", err)
	}
	return string(hashed), nil
}

// Register creates a new principal with the given credential.
func (s *Service) Register(ctx context.Context, email, username, plaintext string, role models.Role) (*models.Principal, error) {
	hash, err := s.HashCredential(plaintext)
	if err != nil {
		return nil, err
	}
	principal := models.NewPrincipal(email, username, role, hash)
	if err := s.store.Create(ctx, principal); err != nil {
		return nil, services.WrapInternal("create principal", err)
	}
	s.logger.Info("principal registered",
		zap.String("principal_id", principal.ID),
		zap.String("role", string(role)))
	return principal, nil
}

// Authenticate verifies username and credential and, when the principal has
// MFA enabled, the challenge code. Unknown usernames, wrong credentials, and
// deactivated accounts all surface as the same InvalidCredentials error so
// responses do not reveal which part failed. A wrong credential bumps the
// principal's failed-attempt counter; success resets it and stamps the
// login time.
func (s *Service) Authenticate(ctx context.Context, username, plaintext, mfaCode string) (*models.Principal, error) {
	principal, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil || principal == nil {
		return nil, services.ErrInvalidCredentials
	}
	if !principal.Active {
		return nil, services.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.CredentialHash), []byte(plaintext)); err != nil {
		principal.FailedLoginAttempts++
		if updateErr := s.store.Update(ctx, principal); updateErr != nil {
			s.logger.Error("failed attempt counter update failed", zap.Error(updateErr))
		}
		s.logger.Warn("authentication failed",
			zap.String("principal_id", principal.ID),
			zap.Int("failed_attempts", principal.FailedLoginAttempts))
		return nil, services.ErrInvalidCredentials
	}

	if principal.MFAEnabled {
		if mfaCode == "" {
			return nil, services.ErrMFARequired
		}
		if !s.verifyMFACode(principal.ID, mfaCode) {
			return nil, services.ErrMFAInvalid
		}
	}

	principal.FailedLoginAttempts = 0
	now := s.now().UTC()
	principal.LastLogin = &now
	if err := s.store.Update(ctx, principal); err != nil {
		return nil, services.WrapInternal("record login", err)
	}
	return principal, nil
}

// GenerateMFACode creates a six-character hex challenge for the principal,
// replacing any outstanding one. The caller delivers it out of band.
func (s *Service) GenerateMFACode(principalID string) (string, error) {
	raw := make([]byte, 3)
	if _, err := rand.Read(raw); err != nil {
		return "", services.WrapInternal("generate mfa code", err)
	}
	code := hex.EncodeToString(raw)

	s.mu.Lock()
	s.pending[principalID] = mfaChallenge{code: code, expires: s.now().Add(mfaCodeTTL)}
	s.mu.Unlock()
	return code, nil
}

func (s *Service) verifyMFACode(principalID, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.pending[principalID]
	if !ok {
		return false
	}
	if s.now().After(challenge.expires) {
		delete(s.pending, principalID)
		return false
	}
	if challenge.code != code {
		return false
	}
	delete(s.pending, principalID)
	return true
}

// Lookup fetches a principal by id.
func (s *Service) Lookup(ctx context.Context, id string) (*models.Principal, error) {
	principal, err := s.store.FindByID(ctx, id)
	if err != nil || principal == nil {
		return nil, services.ErrPrincipalNotFound
	}
	return principal, nil
}

// Deactivate marks a principal inactive. Records are never deleted; the
// audit trail has to keep resolving historical principal ids.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	principal, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	principal.Active = false
	if err := s.store.Update(ctx, principal); err != nil {
		return services.WrapInternal("deactivate principal", err)
	}
	s.logger.Info("principal deactivated", zap.String("principal_id", id))
	return nil
}
