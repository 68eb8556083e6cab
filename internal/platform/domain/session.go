package domain

import "time"

// Session is a rotated, server-side-tracked refresh token (C2, spec §6:
// "session cookie (opaque, server-side session store), rotated on login").
// The access JWT is stateless and short-lived; Session is what lets a
// logout or a detected compromise actually revoke a client's ability to
// mint new access tokens.
type Session struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"tenant_id" db:"tenant_id"`
	UserID           string     `json:"user_id" db:"user_id"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	CSRFToken        string     `json:"-" db:"csrf_token"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt        *time.Time `json:"-" db:"revoked_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// IsValid reports whether the session can still be used to mint new access
// tokens: not revoked, not expired.
func (s *Session) IsValid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
