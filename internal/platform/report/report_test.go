package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/compliance"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const reportSearchPath = "public"
const reportTenantID = "66666666-6666-6666-6666-666666666666"

func policyCols() []string {
	return []string{
		"id", "tenant_id", "vehicle_id", "policy_number", "insurer_name", "start_date", "end_date",
		"premium_amount", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	}
}

func permitCols() []string {
	return []string{
		"id", "tenant_id", "vehicle_id", "permit_type", "reference_number", "issuing_authority",
		"start_date", "end_date", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	}
}

func TestService_ActivePolicies(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	policies := repository.NewPolicyRepository(mockDB.Database(reportSearchPath))
	permits := repository.NewPermitRepository(mockDB.Database(reportSearchPath))
	svc := NewService(policies, permits, nil)
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), reportTenantID, "acme")

	now := time.Now()
	mockDB.ExpectTenantTxBegin(reportSearchPath, reportTenantID)
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM policies WHERE status = \$1`).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM policies`).
		WillReturnRows(testutil.MockRows(policyCols()...).
			AddRow("p1", reportTenantID, "v1", "POL-1", "Acme Insurance", now, now.AddDate(1, 0, 0),
				1000.0, string(domain.PolicyStatusActive), now, nil, nil, nil, nil, now, now, nil))
	mockDB.ExpectCommit()

	results, total, err := svc.ActivePolicies(ctx, repository.Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, results, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestService_RegistrationsInRange(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	policies := repository.NewPolicyRepository(mockDB.Database(reportSearchPath))
	permits := repository.NewPermitRepository(mockDB.Database(reportSearchPath))
	svc := NewService(policies, permits, nil)
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), reportTenantID, "acme")

	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 1, 0)

	mockDB.ExpectTenantTxBegin(reportSearchPath, reportTenantID)
	mockDB.Mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permits WHERE permit_type = \$1 AND start_date BETWEEN \$2 AND \$3`).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM permits`).
		WillReturnRows(testutil.MockRows(permitCols()...).
			AddRow("pm1", reportTenantID, "v1", domain.PermitTypeLATRALicense, "REF-1", "LATRA",
				now, now.AddDate(1, 0, 0), string(domain.PermitStatusActive), now, nil, nil, nil, nil, now, now, nil))
	mockDB.ExpectCommit()

	results, total, err := svc.RegistrationsInRange(ctx, from, to, repository.Pagination{Page: 1, PageSize: 50})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, results, 1)
	mockDB.ExpectationsWereMet(t)
}

func TestService_VehicleSnapshot_DelegatesToComplianceService(t *testing.T) {
	// VehicleSnapshot is a one-line delegation to compliance.Service.VehicleStatus,
	// whose own behavior is covered exhaustively in the compliance package's tests;
	// this just confirms the call reaches VehicleStatus, which rejects a context
	// that carries no tenant.
	svc := NewService(nil, nil, compliance.NewService(nil, nil, nil, nil, func() time.Time { return time.Time{} }))
	_, err := svc.VehicleSnapshot(testutil.DefaultTestContext(t), "vehicle-1")
	require.Error(t, err)
}
