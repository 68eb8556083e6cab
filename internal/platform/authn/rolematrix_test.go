package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetcompliance/platform/internal/platform/domain"
)

func TestAuthorize_SuperAdminHasEverything(t *testing.T) {
	assert.True(t, Authorize(domain.RoleSuperAdmin, "tenant.suspend"))
	assert.True(t, Authorize(domain.RoleSuperAdmin, "policy.cancel"))
}

func TestAuthorize_AgentCanCreateButNotCancelPolicies(t *testing.T) {
	assert.True(t, Authorize(domain.RoleAgent, "policy.create"))
	assert.False(t, Authorize(domain.RoleAgent, "policy.cancel"))
}

func TestAuthorize_ManagerHasFullPolicyWildcard(t *testing.T) {
	assert.True(t, Authorize(domain.RoleManager, "policy.cancel"))
	assert.True(t, Authorize(domain.RoleManager, "policy.activate"))
}

func TestAuthorize_UnknownRoleHasNothing(t *testing.T) {
	assert.False(t, Authorize(domain.Role("bogus"), "policy.read"))
}
