package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

const notifySearchPath = "public"
const notifyTenantID = "33333333-3333-3333-3333-333333333333"

func newNotifyFixture(t *testing.T) (*testutil.MockDB, *Service, *testutil.MockPublisher) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	repo := repository.NewNotificationRepository(mockDB.Database(notifySearchPath))
	pub := testutil.NewMockPublisher()
	return mockDB, NewService(repo, pub), pub
}

func TestExpiryReminderDedupeKey_StableAcrossRetries(t *testing.T) {
	cycleDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	k1 := ExpiryReminderDedupeKey("policy-1", cycleDate, domain.NotificationKindExpiryReminder)
	k2 := ExpiryReminderDedupeKey("policy-1", cycleDate, domain.NotificationKindExpiryReminder)
	assert.Equal(t, k1, k2)
}

func TestExpiryReminderDedupeKey_DiffersByEntity(t *testing.T) {
	cycleDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	k1 := ExpiryReminderDedupeKey("policy-1", cycleDate, domain.NotificationKindExpiryReminder)
	k2 := ExpiryReminderDedupeKey("policy-2", cycleDate, domain.NotificationKindExpiryReminder)
	assert.NotEqual(t, k1, k2)
}

func TestService_EnqueueExpiryReminder_PublishesOnSuccess(t *testing.T) {
	mockDB, svc, pub := newNotifyFixture(t)
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), notifyTenantID, "acme")

	mockDB.ExpectTenantTxBegin(notifySearchPath, notifyTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	enqueued, err := svc.EnqueueExpiryReminder(ctx, []string{"user-1"}, "policy-1",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), map[string]string{"policy_number": "POL-1"})

	require.NoError(t, err)
	assert.True(t, enqueued)
	pub.AssertEventPublished(t, "notification."+string(domain.NotificationKindExpiryReminder))
	mockDB.ExpectationsWereMet(t)
}

func TestService_EnqueueExpiryReminder_DedupeSkipsPublish(t *testing.T) {
	mockDB, svc, pub := newNotifyFixture(t)
	ctx := testutil.WithTestTenantValues(testutil.DefaultTestContext(t), notifyTenantID, "acme")

	mockDB.ExpectTenantTxBegin(notifySearchPath, notifyTenantID)
	mockDB.Mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnRows(testutil.MockRows("created_at"))
	mockDB.ExpectCommit()

	enqueued, err := svc.EnqueueExpiryReminder(ctx, []string{"user-1"}, "policy-1",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), map[string]string{"policy_number": "POL-1"})

	require.NoError(t, err)
	assert.False(t, enqueued)
	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}
