package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
	"github.com/healthassess/secure-gateway/services/rbac"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Config{
		Secret:     []byte("unit-test-secret"),
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, rbac.NewRegistry(rbac.DefaultPolicy()), zap.NewNop())
}

func testPrincipal(role models.Role) *models.Principal {
	return &models.Principal{
		ID:       "principal-1",
		Username: "dr.house",
		Email:    "house@example.com",
		Role:     role,
		Active:   true,
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)
	pair, err := svc.Issue(testPrincipal(models.RoleDoctor))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int((30 * time.Minute).Seconds()), pair.ExpiresIn)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "principal-1", claims.Subject)
	assert.Equal(t, string(models.RoleDoctor), claims.Role)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.True(t, claims.HasPermission(models.PermReadAssessments))
	assert.True(t, claims.HasPermission(models.PermWriteAssessments))
	assert.False(t, claims.HasPermission(models.PermAdminAccess))
}

func TestVerifyMalformed(t *testing.T) {
	svc := newTestService(t)

	for name, raw := range map[string]string{
		"empty":       "",
		"whitespace":  "   ",
		"not a token": "definitely-not-a-jwt",
		"two parts":   "aaaa.bbbb",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(raw)
			assert.ErrorIs(t, err, services.ErrMalformedCredential)
		})
	}
}

func TestVerifyInvalidSignature(t *testing.T) {
	svc := newTestService(t)
	other := NewService(Config{Secret: []byte("a-different-secret")}, rbac.NewRegistry(rbac.DefaultPolicy()), zap.NewNop())

	pair, err := other.Issue(testPrincipal(models.RoleNurse))
	require.NoError(t, err)

	_, err = svc.Verify(pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrInvalidSignature)
}

func TestVerifyExpiredWithValidSignature(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	pair, err := svc.Issue(testPrincipal(models.RoleAnalyst))
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrExpiredCredential)
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	svc := newTestService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: string(models.RoleAdmin),
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "principal-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, services.ErrInvalidSignature)
}

func TestVerifyAccessRejectsRefreshCredential(t *testing.T) {
	svc := newTestService(t)
	pair, err := svc.Issue(testPrincipal(models.RoleDoctor))
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, services.ErrMalformedCredential)
}

func TestRefreshReissuesPair(t *testing.T) {
	svc := newTestService(t)
	principal := testPrincipal(models.RoleDoctor)
	pair, err := svc.Issue(principal)
	require.NoError(t, err)

	fresh, err := svc.Refresh(pair.RefreshToken, func(id string) (*models.Principal, error) {
		assert.Equal(t, "principal-1", id)
		return principal, nil
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleDoctor), claims.Role)
}

func TestRefreshRejectsAccessCredential(t *testing.T) {
	svc := newTestService(t)
	pair, err := svc.Issue(testPrincipal(models.RoleDoctor))
	require.NoError(t, err)

	_, err = svc.Refresh(pair.AccessToken, func(string) (*models.Principal, error) {
		t.Fatal("lookup must not run for a non-refresh credential")
		return nil, nil
	})
	assert.ErrorIs(t, err, services.ErrMalformedCredential)
}

func TestRefreshRejectsDeactivatedPrincipal(t *testing.T) {
	svc := newTestService(t)
	principal := testPrincipal(models.RoleDoctor)
	pair, err := svc.Issue(principal)
	require.NoError(t, err)

	principal.Active = false
	_, err = svc.Refresh(pair.RefreshToken, func(string) (*models.Principal, error) {
		return principal, nil
	})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestPermissionSnapshotFrozenAtIssuance(t *testing.T) {
	policy := rbac.RolePolicy{
		models.RoleViewer: {models.PermReadAssessments},
	}
	svc := NewService(Config{Secret: []byte("unit-test-secret")}, rbac.NewRegistry(policy), zap.NewNop())

	pair, err := svc.Issue(testPrincipal(models.RoleViewer))
	require.NoError(t, err)

	// Mutating the source policy map after issuance must not change what the
	// outstanding credential carries.
	policy[models.RoleViewer] = nil

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.HasPermission(models.PermReadAssessments))
}
