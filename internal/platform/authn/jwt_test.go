package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/config"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        "test-secret-do-not-use-in-production",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 30 * 24 * time.Hour,
		Issuer:        "fleetcompliance-platform",
	}
}

func testUser() *domain.User {
	tenantID := "11111111-1111-1111-1111-111111111111"
	return &domain.User{ID: "u1", TenantID: &tenantID, Email: "agent@acme.test", Role: domain.RoleAgent}
}

func TestManager_GenerateAndValidateAccessToken_RoundTrips(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	u := testUser()

	pair, err := m.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, domain.RoleAgent, claims.Role)
	assert.Equal(t, *u.TenantID, claims.TenantID)
	assert.Equal(t, "acme", claims.TenantSlug)
}

func TestManager_GenerateAndValidateRefreshToken_RoundTrips(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	u := testUser()

	pair, err := m.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, *u.TenantID, claims.TenantID)
}

func TestManager_ValidateAccessToken_RejectsForeignSecret(t *testing.T) {
	issuer := NewManager(testJWTConfig(), nil)
	u := testUser()
	pair, err := issuer.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)

	other := testJWTConfig()
	other.Secret = "a-completely-different-secret"
	verifier := NewManager(other, nil)

	_, err = verifier.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenInvalid))
}

func TestManager_ValidateAccessToken_RejectsExpired(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m := NewManager(testJWTConfig(), func() time.Time { return clock })
	u := testUser()

	pair, err := m.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)

	clock = base.Add(time.Hour)
	_, err = m.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenExpired))
}

func TestManager_ValidateRefreshToken_RejectsTamperedToken(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	u := testUser()
	pair, err := m.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(pair.RefreshToken + "x")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenInvalid))
}
