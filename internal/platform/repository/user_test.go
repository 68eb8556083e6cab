package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const userTestSearchPath = "public"
const userTestTenantID = "22222222-2222-2222-2222-222222222222"

func userColumnNames() []string {
	return []string{
		"id", "tenant_id", "email", "password_hash", "role", "status",
		"failed_login_count", "locked_until", "created_at", "updated_at", "deleted_at",
	}
}

func TestUserRepository_SaveNew_TenantScoped(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), userTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(userTestSearchPath, userTestTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO platform_users`).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))
	mockDB.Mock.ExpectExec(`INSERT INTO platform_user_lookup`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	tenantID := userTestTenantID
	u := &domain.User{TenantID: &tenantID, Email: "agent@acme.test", PasswordHash: "hash", Role: domain.RoleAgent}
	err := repo.SaveNew(ctx, u, "acme")

	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, domain.UserStatusActive, u.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_SaveNew_SuperAdminSkipsRLS(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	// No tenant bound and no transaction opened: the insert runs directly
	// against the base connection.
	mockDB.Mock.ExpectQuery(`INSERT INTO platform_users`).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))

	u := &domain.User{Email: "owner@platform.test", PasswordHash: "hash", Role: domain.RoleSuperAdmin}
	err := repo.SaveNew(ctx, u, "")

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), userTestTenantID, "acme")

	mockDB.ExpectTenantTxBegin(userTestSearchPath, userTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM platform_users WHERE id = \$1`).
		WillReturnRows(testutil.MockRows(userColumnNames()...))
	mockDB.ExpectRollback()

	_, err := repo.GetByID(ctx, "missing-user")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_ListByRoles(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), userTestTenantID, "acme")

	now := time.Now()
	rows := testutil.MockRows(userColumnNames()...).
		AddRow("u1", userTestTenantID, "admin@acme.test", "hash", string(domain.RoleAdmin), string(domain.UserStatusActive), 0, nil, now, now, nil).
		AddRow("u2", userTestTenantID, "manager@acme.test", "hash", string(domain.RoleManager), string(domain.UserStatusActive), 0, nil, now, now, nil)

	mockDB.ExpectTenantTxBegin(userTestSearchPath, userTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM platform_users`).
		WillReturnRows(rows)
	mockDB.ExpectCommit()

	users, err := repo.ListByRoles(ctx, []domain.Role{domain.RoleAdmin, domain.RoleManager})

	require.NoError(t, err)
	assert.Len(t, users, 2)
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_GetByEmail_ViaLookup(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.DefaultTestContext(t)
	now := time.Now()

	mockDB.Mock.ExpectQuery(`SELECT user_id, tenant_id FROM platform_user_lookup WHERE email = \$1`).
		WillReturnRows(testutil.MockRows("user_id", "tenant_id").AddRow("u1", userTestTenantID))
	mockDB.ExpectTenantTxBegin(userTestSearchPath, userTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM platform_users WHERE id = \$1`).
		WillReturnRows(testutil.MockRows(userColumnNames()...).
			AddRow("u1", userTestTenantID, "agent@acme.test", "hash", string(domain.RoleAgent), string(domain.UserStatusActive), 0, nil, now, now, nil))
	mockDB.ExpectCommit()

	u, err := repo.GetByEmail(ctx, "agent@acme.test")

	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_GetByEmail_FallsBackToSuperAdmin(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.DefaultTestContext(t)
	now := time.Now()

	mockDB.Mock.ExpectQuery(`SELECT user_id, tenant_id FROM platform_user_lookup WHERE email = \$1`).
		WillReturnRows(testutil.MockRows("user_id", "tenant_id"))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM platform_users WHERE email = \$1 AND tenant_id IS NULL`).
		WillReturnRows(testutil.MockRows(userColumnNames()...).
			AddRow("owner-1", nil, "owner@platform.test", "hash", string(domain.RoleSuperAdmin), string(domain.UserStatusActive), 0, nil, now, now, nil))

	u, err := repo.GetByEmail(ctx, "owner@platform.test")

	require.NoError(t, err)
	assert.Equal(t, "owner-1", u.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestUserRepository_GetByID_TenantUnbound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewUserRepository(mockDB.Database(userTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	_, err := repo.GetByID(ctx, "any-id")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTenantUnbound))
	mockDB.ExpectationsWereMet(t)
}
