package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const permitTestSearchPath = "public"
const permitTestTenantID = "55555555-5555-5555-5555-555555555555"

func permitColumnNames() []string {
	return []string{
		"id", "tenant_id", "vehicle_id", "permit_type", "reference_number", "issuing_authority",
		"start_date", "end_date", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	}
}

func TestPermitRepository_ListByStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewPermitRepository(mockDB.Database(permitTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), permitTestTenantID, "acme")

	now := time.Now()
	mockDB.ExpectTenantTxBegin(permitTestSearchPath, permitTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permits WHERE status = \$1`).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM permits`).
		WillReturnRows(testutil.MockRows(permitColumnNames()...).
			AddRow("pm1", permitTestTenantID, "v1", domain.PermitTypeLATRALicense, "REF-1", "LATRA",
				now, now.AddDate(1, 0, 0), string(domain.PermitStatusActive), now, nil, nil, nil, nil, now, now, nil))
	mockDB.ExpectCommit()

	permits, total, err := repo.ListByStatus(ctx, domain.PermitStatusActive, Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, permits, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestPermitRepository_ListByTypeAndDateRange(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewPermitRepository(mockDB.Database(permitTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), permitTestTenantID, "acme")

	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 1, 0)

	mockDB.ExpectTenantTxBegin(permitTestSearchPath, permitTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permits WHERE permit_type = \$1 AND start_date BETWEEN \$2 AND \$3`).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM permits`).
		WillReturnRows(testutil.MockRows(permitColumnNames()...).
			AddRow("pm1", permitTestTenantID, "v1", domain.PermitTypeLATRALicense, "REF-1", "LATRA",
				now, now.AddDate(1, 0, 0), string(domain.PermitStatusActive), now, nil, nil, nil, nil, now, now, nil))
	mockDB.ExpectCommit()

	permits, total, err := repo.ListByTypeAndDateRange(ctx, domain.PermitTypeLATRALicense, from, to, Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, permits, 1)
	mockDB.ExpectationsWereMet(t)
}
