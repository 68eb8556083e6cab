package handler

import (
	"net/http"

	"github.com/fleetcompliance/platform/internal/platform/authn"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

// AuthHandler exposes the login/refresh/logout flow that authn.Service
// implements. Login and Refresh run outside the tenant and session
// middleware chain — a caller has no tenant and no bearer token until Login
// succeeds. Logout and Me sit behind SessionMiddleware only.
type AuthHandler struct {
	service *authn.Service
	logger  *logger.Logger
}

func NewAuthHandler(svc *authn.Service, log *logger.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates by email/password and returns a fresh token pair plus
// the CSRF token a browser client must echo back on state-changing requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a session's refresh token and mints a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Logout revokes the session backing the presented refresh token. The tenant
// is read off the X-Tenant-ID header that SessionMiddleware sets from the
// bearer token; TenantMiddleware does not run ahead of this route.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		httputil.Error(w, errors.Unauthorized("not authenticated"))
		return
	}

	if err := h.service.Logout(r.Context(), tenantID, req.RefreshToken); err != nil {
		h.logger.Warn().Err(err).Msg("logout error")
	}

	httputil.NoContent(w)
}

// Me echoes the identity SessionMiddleware resolved from the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, errors.Unauthorized("not authenticated"))
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"user_id":     userID,
		"email":       httputil.GetUserEmail(r.Context()),
		"role":        httputil.GetUserRole(r.Context()),
		"tenant_id":   r.Header.Get("X-Tenant-ID"),
		"tenant_slug": r.Header.Get("X-Tenant-Slug"),
	})
}
