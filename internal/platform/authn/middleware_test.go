package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/httputil"
)

func tokenFor(t *testing.T, m *Manager, role domain.Role) string {
	t.Helper()
	tenantID := "33333333-3333-3333-3333-333333333333"
	u := &domain.User{ID: "u1", TenantID: &tenantID, Email: "agent@acme.test", Role: role}
	pair, err := m.GenerateTokenPair(u, "acme", "session-1")
	require.NoError(t, err)
	return pair.AccessToken
}

func TestSessionMiddleware_RejectsMissingBearer(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	called := false
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/vehicles", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_SetsTenantHeadersAndUserContext(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	token := tokenFor(t, m, domain.RoleManager)

	var gotRole string
	var gotTenantHeader string
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = httputil.GetUserRole(r.Context())
		gotTenantHeader = r.Header.Get("X-Tenant-ID")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.RoleManager), gotRole)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", gotTenantHeader)
}

func TestSessionMiddleware_HealthPathExempt(t *testing.T) {
	m := NewManager(testJWTConfig(), nil)
	called := false
	handler := SessionMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission_RejectsInsufficientRole(t *testing.T) {
	called := false
	handler := RequirePermission("policy.cancel")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/policies/1/cancel", nil)
	req = req.WithContext(httputil.WithUserContext(req.Context(), "u1", "agent@acme.test", string(domain.RoleAgent)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermission_AllowsSufficientRole(t *testing.T) {
	called := false
	handler := RequirePermission("policy.cancel")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/policies/1/cancel", nil)
	req = req.WithContext(httputil.WithUserContext(req.Context(), "u1", "manager@acme.test", string(domain.RoleManager)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
