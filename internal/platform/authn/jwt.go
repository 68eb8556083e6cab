// Package authn is the authenticate/authorize layer (C2, spec §4.2 and the
// §6 "Tenant-user authentication" external interface): login, session
// rotation, lockout, and the role-matrix permission check every handler
// consults before touching a repository.
package authn

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/config"
	"github.com/fleetcompliance/platform/pkg/errors"
)

// Claims is the access token payload: enough to authorize a request without
// touching the database on every call.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string      `json:"user_id"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	TenantID   string      `json:"tenant_id,omitempty"`
	TenantSlug string      `json:"tenant_slug,omitempty"`
}

// RefreshClaims is the refresh token payload. It deliberately carries no
// role or permission data — a refresh only proves "this session is still
// live"; Refresh re-reads the user row to pick up any role change since
// login.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// TokenPair is what Login and Refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
}

// Manager signs and validates the platform's access and refresh JWTs.
type Manager struct {
	config *config.JWTConfig
	clock  func() time.Time
}

// NewManager builds a Manager. clock defaults to time.Now when nil.
func NewManager(cfg *config.JWTConfig, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{config: cfg, clock: clock}
}

// GenerateTokenPair signs a fresh access/refresh pair for a user that has
// just authenticated, bound to sessionID so a refresh can find its session
// row without a lookup-by-user query.
func (m *Manager) GenerateTokenPair(u *domain.User, tenantSlug, sessionID string) (*TokenPair, error) {
	now := m.clock()
	accessExpiresAt := now.Add(m.config.AccessExpiry)

	tenantID := ""
	if u.TenantID != nil {
		tenantID = *u.TenantID
	}

	accessClaims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
		},
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshExpiry)),
		},
		UserID:    u.ID,
		SessionID: sessionID,
		TenantID:  tenantID,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// ValidateAccessToken parses and verifies an access token.
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil {
		if err.Error() == "token has invalid claims: token is expired" {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}
	return claims, nil
}

// ValidateRefreshToken parses and verifies a refresh token.
func (m *Manager) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil {
		if err.Error() == "token has invalid claims: token is expired" {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}
	return claims, nil
}
