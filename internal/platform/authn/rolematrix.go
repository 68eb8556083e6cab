package authn

import (
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/permissions"
)

// roleMatrix maps each Role (§4.2) to the permission set it carries. A
// super_admin's "*" short-circuits every check in permissions.HasPermission;
// every other role is scoped to what its job actually needs to touch.
var roleMatrix = map[domain.Role][]string{
	domain.RoleSuperAdmin: {"*"},
	domain.RoleAdmin: {
		"customer.*", "vehicle.*", "policy.*", "permit.*", "payment.*",
		"dynamicfield.*", "reports.*", "audit.*",
	},
	domain.RoleManager: {
		"customer.read", "customer.write", "vehicle.*", "policy.*", "permit.*",
		"payment.*", "dynamicfield.read", "reports.*", "audit.read",
	},
	domain.RoleAgent: {
		"customer.read", "customer.write", "vehicle.read", "vehicle.write",
		"policy.read", "policy.create", "permit.read", "permit.create",
		"payment.record", "reports.read",
	},
}

// Authorize reports whether role carries the required permission, per the
// role matrix above.
func Authorize(role domain.Role, required string) bool {
	return permissions.HasPermission(roleMatrix[role], required)
}
