package lifecycle

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

func newPermitFixture(t *testing.T) (*testutil.MockDB, *PermitEngine, *testutil.MockPublisher) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := mockDB.Database(testSearchPath)
	permits := repository.NewPermitRepository(db)
	users := repository.NewUserRepository(db)
	notifications := repository.NewNotificationRepository(db)
	auditWriter := audit.NewWriter(repository.NewAuditRepository(db), repository.NewHistoryRepository(db))
	pub := testutil.NewMockPublisher()

	engine := NewPermitEngine(db, permits, users, notifications, auditWriter, nopLocker{}, pub, fixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)))
	return mockDB, engine, pub
}

func TestPermitEngine_CreateDraft_RoleDenied(t *testing.T) {
	mockDB, engine, pub := newPermitFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	p := &domain.Permit{VehicleID: "veh-1", PermitType: domain.PermitTypeLATRALicense}
	_, err := engine.CreateDraft(ctx, Actor{UserID: "u1", Role: domain.RoleSuperAdmin}, p)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	mockDB.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestPermitEngine_Activate_RoleDenied(t *testing.T) {
	mockDB, engine, pub := newPermitFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	_, err := engine.Activate(ctx, Actor{UserID: "u1", Role: domain.RoleAgent}, "permit-1")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	mockDB.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestPermitEngine_Edit_ImmutableRejected(t *testing.T) {
	mockDB, engine, _ := newPermitFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM permits WHERE id = \$1`).
		WillReturnRows(permitRow("permit-1", domain.PermitStatusActive))
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	_, err := engine.Edit(ctx, Actor{UserID: "u1", Role: domain.RoleAgent}, "permit-1", "REF-1", "LATRA", time.Now(), time.Now().Add(24*time.Hour))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrImmutable))
	mockDB.ExpectationsWereMet(t)
}

func TestPermitEngine_Cancel_InvalidReasonRejected(t *testing.T) {
	_, engine, pub := newPermitFixture(t)
	ctx := testPolicyCtx()

	_, err := engine.Cancel(ctx, Actor{UserID: "u1", Role: domain.RoleManager}, "permit-1", domain.PermitCancellationReason("bogus"), nil)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	pub.AssertNoEventsPublished(t)
}

func permitRow(id string, status domain.PermitStatus) *sqlmock.Rows {
	now := time.Now()
	rows := testutil.MockRows(
		"id", "tenant_id", "vehicle_id", "permit_type", "reference_number", "issuing_authority",
		"start_date", "end_date", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	)
	rows.AddRow(id, testTenantID, "veh-1", domain.PermitTypeLATRALicense, "REF-1", "LATRA",
		now, now.Add(24*time.Hour), string(status), nil, nil, nil, nil, nil, now, now, nil)
	return rows
}
