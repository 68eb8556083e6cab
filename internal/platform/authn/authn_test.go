package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
)

func TestCheckCSRF_MatchingTokenPasses(t *testing.T) {
	session := &domain.Session{CSRFToken: "tok-1"}
	require.NoError(t, CheckCSRF(session, "tok-1"))
}

func TestCheckCSRF_MismatchedTokenFails(t *testing.T) {
	session := &domain.Session{CSRFToken: "tok-1"}
	err := CheckCSRF(session, "tok-2")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCSRFMismatch))
}

func TestCheckCSRF_EmptyPresentedTokenFails(t *testing.T) {
	session := &domain.Session{CSRFToken: "tok-1"}
	err := CheckCSRF(session, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCSRFMismatch))
}

func TestGenerateOpaqueToken_ProducesDistinctNonEmptyTokens(t *testing.T) {
	a, err := generateOpaqueToken()
	require.NoError(t, err)
	b, err := generateOpaqueToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b)
}

func TestSession_IsValid(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	valid := &domain.Session{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, valid.IsValid(now))

	expired := &domain.Session{ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, expired.IsValid(now))

	revokedAt := now.Add(-time.Minute)
	revoked := &domain.Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}
	assert.False(t, revoked.IsValid(now))
}
