package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
)

// SessionRepository handles sessions persistence (C2). Every method takes
// tenantID explicitly rather than reading it off the context: a session row
// is resolved before a tenant has necessarily been attached to the request
// (login, refresh), so the caller supplies whatever tenant it already
// learned from the lookup table or from the refresh token's own claims.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, tenant_id, user_id, refresh_token_hash, csrf_token, expires_at, revoked_at, created_at`

// CreateWithID persists a new session under a caller-chosen ID (the same ID
// embedded as the refresh JWT's session claim, so a later refresh can find
// this row without a second query).
func (r *SessionRepository) CreateWithID(ctx context.Context, id, tenantID, userID, refreshToken, csrfToken string, expiresAt time.Time) (*domain.Session, error) {
	s := &domain.Session{
		ID:               id,
		TenantID:         tenantID,
		UserID:           userID,
		RefreshTokenHash: hashToken(refreshToken),
		CSRFToken:        csrfToken,
		ExpiresAt:        expiresAt,
	}

	err := r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO sessions (id, tenant_id, user_id, refresh_token_hash, csrf_token, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		return r.db.QueryRowxContext(ctx, query, s.ID, s.TenantID, s.UserID, s.RefreshTokenHash, s.CSRFToken, s.ExpiresAt).
			Scan(&s.CreatedAt)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return s, nil
}

// GetByRefreshToken loads the session backing a presented refresh token,
// scoped to tenantID (taken from the refresh JWT's own claims — the token
// cannot be looked up without already knowing which tenant issued it).
// Revoked or expired sessions are not returned: database.MapPQError has
// nothing to map here, so a miss always surfaces as ErrNotFound.
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, tenantID, refreshToken string) (*domain.Session, error) {
	hash := hashToken(refreshToken)

	var s domain.Session
	err := r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + sessionColumns + ` FROM sessions
			WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()`
		return r.db.GetContext(ctx, &s, query, hash)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("session")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateRefreshTokenHash rotates a session onto a newly issued refresh token
// and CSRF token — called on every successful Refresh so a stolen refresh
// token stops working the moment its legitimate owner uses it again.
func (r *SessionRepository) UpdateRefreshTokenHash(ctx context.Context, tenantID, sessionID, newRefreshToken, newCSRFToken string) error {
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE sessions SET refresh_token_hash = $1, csrf_token = $2 WHERE id = $3",
			hashToken(newRefreshToken), newCSRFToken, sessionID)
		return err
	})
}

// RevokeByRefreshToken revokes the session backing a presented refresh
// token — the logout path.
func (r *SessionRepository) RevokeByRefreshToken(ctx context.Context, tenantID, refreshToken string) error {
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE sessions SET revoked_at = NOW() WHERE refresh_token_hash = $1 AND revoked_at IS NULL",
			hashToken(refreshToken))
		return err
	})
}

// RevokeAllForUser revokes every live session for a user.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, tenantID, userID string) error {
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL", userID)
		return err
	})
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
