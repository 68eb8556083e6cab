package authn

import (
	"net/http"
	"strings"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
)

// SessionMiddleware verifies the bearer access token on every request and
// publishes the resolved identity onto the request: the user fields via
// httputil.WithUserContext, and the tenant as X-Tenant-ID/X-Tenant-Slug
// request headers for httputil.TenantMiddleware (chained immediately after
// this one) to bind onto the context tenant package reads. /health and
// /metrics are exempt, matching TenantMiddleware's own exemption.
func SessionMiddleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				httputil.Error(w, errors.Unauthorized("missing bearer token"))
				return
			}

			claims, err := manager.ValidateAccessToken(parts[1])
			if err != nil {
				httputil.Error(w, err)
				return
			}

			r.Header.Set("X-Tenant-ID", claims.TenantID)
			r.Header.Set("X-Tenant-Slug", claims.TenantSlug)

			ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, string(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects a request whose authenticated role (set by
// SessionMiddleware) doesn't carry the given permission in the role matrix.
// Mount after SessionMiddleware on routes that need finer-grained control
// than "any authenticated user".
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := httputil.GetUserRole(r.Context())
			if !Authorize(domain.Role(role), permission) {
				httputil.Error(w, errors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
