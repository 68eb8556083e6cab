package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

// TenantHandler is super-admin-only: creating a tenant, suspending it, and
// provisioning its first admin user all happen outside any tenant's own RLS
// scope, since no tenant exists yet for the first two and the third writes
// platform_user_lookup directly.
type TenantHandler struct {
	tenants *repository.TenantRepository
	users   *repository.UserRepository
	logger  *logger.Logger
}

func NewTenantHandler(tenants *repository.TenantRepository, users *repository.UserRepository, log *logger.Logger) *TenantHandler {
	return &TenantHandler{tenants: tenants, users: users, logger: log}
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,alphanum,lowercase"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	t := &domain.Tenant{Name: req.Name, Slug: req.Slug, Status: domain.TenantStatusActive}
	if err := h.tenants.SaveNew(r.Context(), t); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, t)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, t)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	tenants, total, err := h.tenants.List(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, tenants, meta(page, total))
}

type suspendTenantRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended"`
}

func (h *TenantHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req suspendTenantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.tenants.SetStatus(r.Context(), id, domain.TenantStatus(req.Status)); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

type updateSettingsRequest struct {
	ExpiryReminderDays   int      `json:"expiry_reminder_days"`
	FleetPoliciesEnabled bool     `json:"fleet_policies_enabled"`
	RequiredPermitTypes  []string `json:"required_permit_types"`
}

func (h *TenantHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	settings := domain.TenantSettings{
		ExpiryReminderDays:   req.ExpiryReminderDays,
		FleetPoliciesEnabled: req.FleetPoliciesEnabled,
		RequiredPermitTypes:  req.RequiredPermitTypes,
	}
	if err := h.tenants.SaveSettings(r.Context(), id, settings); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin manager agent"`
}

// CreateUser provisions a tenant-scoped user. Route is mounted under
// /tenants/{id}/users so the acting super-admin states the tenant
// explicitly, rather than the platform inferring it from the caller's own
// session (a super-admin has none).
func (h *TenantHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	var req createUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if !t.IsActive() {
		httputil.Error(w, errors.Conflict("tenant is not active"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.Error(w, errors.Internal("failed to hash password"))
		return
	}

	u := &domain.User{
		TenantID:     &tenantID,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         domain.Role(req.Role),
		Status:       domain.UserStatusActive,
	}
	if err := h.users.SaveNew(r.Context(), u, t.Slug); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, u)
}
