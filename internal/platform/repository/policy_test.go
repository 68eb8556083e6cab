package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const policyTestSearchPath = "public"
const policyTestTenantID = "44444444-4444-4444-4444-444444444444"

func policyColumnNames() []string {
	return []string{
		"id", "tenant_id", "vehicle_id", "policy_number", "insurer_name", "start_date", "end_date",
		"premium_amount", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	}
}

func TestPolicyRepository_ListByStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewPolicyRepository(mockDB.Database(policyTestSearchPath))
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), policyTestTenantID, "acme")

	now := time.Now()
	mockDB.ExpectTenantTxBegin(policyTestSearchPath, policyTestTenantID)
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM policies WHERE status = \$1`).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM policies`).
		WillReturnRows(testutil.MockRows(policyColumnNames()...).
			AddRow("p1", policyTestTenantID, "v1", "POL-1", "Acme Insurance", now, now.AddDate(1, 0, 0),
				1000.0, string(domain.PolicyStatusActive), now, nil, nil, nil, nil, now, now, nil))
	mockDB.ExpectCommit()

	policies, total, err := repo.ListByStatus(ctx, domain.PolicyStatusActive, Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, policies, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestPolicyRepository_ListByStatus_TenantUnbound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewPolicyRepository(mockDB.Database(policyTestSearchPath))
	ctx := testutil.DefaultTestContext(t)

	_, _, err := repo.ListByStatus(ctx, domain.PolicyStatusActive, Pagination{Page: 1, PageSize: 50})
	require.Error(t, err)
}
