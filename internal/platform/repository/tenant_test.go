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

const tenantTestSearchPath = "public"

func tenantColumnNames() []string {
	return []string{"id", "name", "slug", "status", "settings", "created_at", "updated_at", "deleted_at"}
}

// TenantRepository never opens a tenant-scoped RLS transaction: a tenants row
// is the isolation boundary itself, so every test here expects a plain query
// against the base connection.

func TestTenantRepository_SaveNew(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	mockDB.Mock.ExpectQuery(`INSERT INTO tenants`).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))

	tenant := &domain.Tenant{Name: "Acme Fleet", Slug: "acme"}
	err := repo.SaveNew(ctx, tenant)

	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestTenantRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	mockDB.Mock.ExpectQuery(`SELECT .+ FROM tenants WHERE id = \$1`).
		WillReturnRows(testutil.MockRows(tenantColumnNames()...))

	_, err := repo.GetByID(ctx, "missing-tenant")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestTenantRepository_GetBySlug_UnmarshalsSettings(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	now := time.Now()
	settingsJSON := `{"expiry_reminder_days":14,"fleet_policies_enabled":true,"required_permit_types":["transit","hazmat"]}`
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM tenants WHERE slug = \$1`).
		WillReturnRows(testutil.MockRows(tenantColumnNames()...).
			AddRow("tenant-1", "Acme Fleet", "acme", string(domain.TenantStatusActive), settingsJSON, now, now, nil))

	tenant, err := repo.GetBySlug(ctx, "acme")

	require.NoError(t, err)
	assert.Equal(t, 14, tenant.Settings.ExpiryReminderDays)
	assert.Equal(t, []string{"transit", "hazmat"}, tenant.Settings.RequiredPermitTypes)
	mockDB.ExpectationsWereMet(t)
}

func TestTenantRepository_List(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	now := time.Now()
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tenants`).
		WillReturnRows(testutil.MockRows("count").AddRow(2))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM tenants WHERE deleted_at IS NULL`).
		WillReturnRows(testutil.MockRows(tenantColumnNames()...).
			AddRow("t1", "Acme Fleet", "acme", string(domain.TenantStatusActive), `{}`, now, now, nil).
			AddRow("t2", "Bravo Logistics", "bravo", string(domain.TenantStatusActive), `{}`, now, now, nil))

	tenants, total, err := repo.List(ctx, Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, tenants, 2)
	mockDB.ExpectationsWereMet(t)
}

func TestTenantRepository_SaveSettings_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	mockDB.Mock.ExpectExec(`UPDATE tenants SET settings`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveSettings(ctx, "missing-tenant", domain.TenantSettings{ExpiryReminderDays: 30})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestTenantRepository_SetStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewTenantRepository(mockDB.Database(tenantTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	mockDB.Mock.ExpectExec(`UPDATE tenants SET status`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SetStatus(ctx, "tenant-1", domain.TenantStatusSuspended)

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}
