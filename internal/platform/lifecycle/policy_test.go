package lifecycle

import (
	"context"
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

const testSearchPath = "public"
const testTenantID = "11111111-1111-1111-1111-111111111111"

// nopLocker runs fn directly, standing in for PostgresLocker/RedisLocker in
// tests that don't exercise the advisory-lock round trip itself.
type nopLocker struct{}

func (nopLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return fn(ctx)
}

func testPolicyCtx() context.Context {
	return testutil.WithTestTenantValues(context.Background(), testTenantID, "acme")
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newPolicyFixture(t *testing.T) (*testutil.MockDB, *PolicyEngine, *testutil.MockPublisher) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := mockDB.Database(testSearchPath)
	policies := repository.NewPolicyRepository(db)
	payments := repository.NewPaymentRepository(db)
	users := repository.NewUserRepository(db)
	notifications := repository.NewNotificationRepository(db)
	auditWriter := audit.NewWriter(repository.NewAuditRepository(db), repository.NewHistoryRepository(db))
	pub := testutil.NewMockPublisher()

	engine := NewPolicyEngine(db, policies, payments, users, notifications, auditWriter, nopLocker{}, pub, fixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)))
	return mockDB, engine, pub
}

func TestPolicyEngine_CreateDraft_RoleDenied(t *testing.T) {
	mockDB, engine, pub := newPolicyFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	p := &domain.Policy{VehicleID: "veh-1"}
	_, err := engine.CreateDraft(ctx, Actor{UserID: "u1", Role: domain.RoleSuperAdmin}, p)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	mockDB.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestPolicyEngine_CreateDraft_Success(t *testing.T) {
	mockDB, engine, _ := newPolicyFixture(t)
	ctx := testPolicyCtx()

	// PolicyRepository.SaveNew runs its own WithTenantRLS transaction.
	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO policies").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))
	mockDB.ExpectCommit()

	// The engine's own audit write runs in a second transaction.
	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO history_records").
		WillReturnRows(testutil.MockRows("version", "recorded_at").AddRow(1, time.Now()))
	mockDB.ExpectCommit()

	p := &domain.Policy{VehicleID: "veh-1", PolicyNumber: "POL-1", InsurerName: "Acme Insurance", PremiumAmount: 100}
	out, err := engine.CreateDraft(ctx, Actor{UserID: "u1", Role: domain.RoleManager}, p)

	require.NoError(t, err)
	assert.Equal(t, domain.PolicyStatusDraft, out.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestPolicyEngine_Edit_ImmutableRejected(t *testing.T) {
	mockDB, engine, _ := newPolicyFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM policies WHERE id = \$1`).
		WillReturnRows(policyRow("pol-1", domain.PolicyStatusActive))
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	_, err := engine.Edit(ctx, Actor{UserID: "u1", Role: domain.RoleAgent}, "pol-1", "New Insurer", time.Now(), time.Now().Add(24*time.Hour), 100)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrImmutable))
	mockDB.ExpectationsWereMet(t)
}

func TestPolicyEngine_Cancel_RoleDenied(t *testing.T) {
	mockDB, engine, pub := newPolicyFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(testutil.MockRows("at_ts").AddRow(time.Now()))
	mockDB.ExpectCommit()

	_, err := engine.Cancel(ctx, Actor{UserID: "u1", Role: domain.RoleAgent}, "pol-1", domain.PolicyCancelCustomerRequest, nil)

	require.Error(t, err)
	mockDB.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestPolicyEngine_Cancel_InvalidReasonRejected(t *testing.T) {
	_, engine, pub := newPolicyFixture(t)
	ctx := testPolicyCtx()

	_, err := engine.Cancel(ctx, Actor{UserID: "u1", Role: domain.RoleManager}, "pol-1", domain.PolicyCancellationReason("not_a_reason"), nil)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	pub.AssertNoEventsPublished(t)
}

func TestPolicyEngine_Expire_NotYetDueRejected(t *testing.T) {
	mockDB, engine, pub := newPolicyFixture(t)
	ctx := testPolicyCtx()

	mockDB.ExpectTenantTxBegin(testSearchPath, testTenantID)
	mockDB.Mock.ExpectQuery(`SELECT .+ FROM policies WHERE id = \$1`).
		WillReturnRows(policyRowWithEndDate("pol-1", domain.PolicyStatusActive, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	mockDB.ExpectRollback()

	_, err := engine.Expire(ctx, "pol-1")

	require.Error(t, err)
	mockDB.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func policyRow(id string, status domain.PolicyStatus) *sqlmock.Rows {
	return policyRowWithEndDate(id, status, time.Now().Add(24*time.Hour))
}

func policyRowWithEndDate(id string, status domain.PolicyStatus, endDate time.Time) *sqlmock.Rows {
	now := time.Now()
	rows := testutil.MockRows(
		"id", "tenant_id", "vehicle_id", "policy_number", "insurer_name", "start_date", "end_date",
		"premium_amount", "status", "activated_at", "cancelled_at", "cancelled_by",
		"cancellation_reason", "cancellation_note", "created_at", "updated_at", "deleted_at",
	)
	rows.AddRow(id, testTenantID, "veh-1", "POL-1", "Acme Insurance", now, endDate,
		float64(100), string(status), nil, nil, nil, nil, nil, now, now, nil)
	return rows
}
