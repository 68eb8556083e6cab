package authn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/config"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/logger"
	"github.com/fleetcompliance/platform/pkg/metrics"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// LoginResult is everything a login handler needs to set the session cookie
// and the CSRF header.
type LoginResult struct {
	User      *domain.User
	Tokens    *TokenPair
	CSRFToken string
}

// Service is the authenticate/authorize entry point (C2).
type Service struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	tenants  *repository.TenantRepository
	jwt      *Manager
	cfg      *config.JWTConfig
	log      *logger.Logger
	clock    func() time.Time
}

// NewService wires an authn Service. clock defaults to time.Now when nil.
func NewService(
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	tenants *repository.TenantRepository,
	jwtManager *Manager,
	cfg *config.JWTConfig,
	log *logger.Logger,
	clock func() time.Time,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{users: users, sessions: sessions, tenants: tenants, jwt: jwtManager, cfg: cfg, log: log, clock: clock}
}

// Login authenticates an email/password pair and, for a tenant user, persists
// a new session on success; a super_admin login issues tokens without a
// session row. An unknown email and a wrong password return the same
// InvalidCredentials error. A locked account, an account that is not eligible
// to authenticate, and a suspended tenant are each reported distinctly.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	now := s.clock()

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("unknown_email").Inc()
		return nil, errors.InvalidCredentials()
	}

	if u.IsLocked(now) {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		return nil, errors.AccountLocked()
	}
	if !u.CanAuthenticate(now) {
		metrics.LoginAttemptsTotal.WithLabelValues("ineligible").Inc()
		return nil, errors.Unauthorized("account is not eligible to authenticate")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		if err := s.users.RecordFailedLogin(ctx, u.ID, maxFailedLogins, now.Add(lockoutDuration)); err != nil && s.log != nil {
			s.log.Error().Str("user_id", u.ID).Err(err).Msg("record failed login")
		}
		metrics.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
		return nil, errors.InvalidCredentials()
	}
	if err := s.users.ResetFailedLogins(ctx, u.ID); err != nil && s.log != nil {
		s.log.Error().Str("user_id", u.ID).Err(err).Msg("reset failed logins")
	}

	var tenantSlug string
	tenantID := ""
	if u.TenantID != nil {
		tenantID = *u.TenantID
		t, err := s.tenants.GetByID(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if !t.IsActive() {
			return nil, errors.Forbidden("tenant is suspended")
		}
		tenantSlug = t.Slug
	}

	sessionID := uuid.New().String()
	tokens, err := s.jwt.GenerateTokenPair(u, tenantSlug, sessionID)
	if err != nil {
		return nil, err
	}

	csrfToken, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	if tenantID != "" {
		sessionCtx := tenant.WithTenantID(ctx, tenantID)
		if _, err := s.sessions.CreateWithID(sessionCtx, sessionID, tenantID, u.ID, tokens.RefreshToken, csrfToken, now.Add(s.cfg.RefreshExpiry)); err != nil {
			return nil, err
		}
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &LoginResult{User: u, Tokens: tokens, CSRFToken: csrfToken}, nil
}

// Refresh validates a refresh token, rotates the backing session onto a
// freshly minted refresh token and CSRF token, and re-reads the user row so
// a role change since login takes effect without forcing a re-login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TenantID == "" {
		return nil, errors.TokenInvalid()
	}

	sessionCtx := tenant.WithTenantID(ctx, claims.TenantID)
	session, err := s.sessions.GetByRefreshToken(sessionCtx, claims.TenantID, refreshToken)
	if err != nil {
		return nil, errors.TokenInvalid()
	}
	if !session.IsValid(s.clock()) {
		return nil, errors.TokenInvalid()
	}

	u, err := s.users.GetByID(sessionCtx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !u.CanAuthenticate(s.clock()) {
		return nil, errors.Unauthorized("account is not eligible to authenticate")
	}

	t, err := s.tenants.GetByID(sessionCtx, claims.TenantID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.jwt.GenerateTokenPair(u, t.Slug, session.ID)
	if err != nil {
		return nil, err
	}
	csrfToken, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateRefreshTokenHash(sessionCtx, claims.TenantID, session.ID, tokens.RefreshToken, csrfToken); err != nil {
		return nil, err
	}

	return &LoginResult{User: u, Tokens: tokens, CSRFToken: csrfToken}, nil
}

// Logout revokes the session backing a refresh token.
func (s *Service) Logout(ctx context.Context, tenantID, refreshToken string) error {
	return s.sessions.RevokeByRefreshToken(tenant.WithTenantID(ctx, tenantID), tenantID, refreshToken)
}

// CheckCSRF compares a request's CSRF header against the token stored on
// its session — the double-submit check for state-changing requests (§6).
func CheckCSRF(session *domain.Session, presented string) error {
	if presented == "" || session.CSRFToken != presented {
		return errors.CSRFMismatch()
	}
	return nil
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
