package lifecycle

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/testutil"
)

// Shared across every *_integration_test.go in this package: Go allows only
// one TestMain per test binary, so permit_integration_test.go reuses this
// suite rather than declaring its own.
var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		panic("failed to create integration suite: " + err.Error())
	}
	defer suite.Cleanup(ctx)
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func newTestVehicle(t *testing.T, ctx context.Context) *domain.Vehicle {
	t.Helper()
	vehicles := repository.NewVehicleRepository(suite.DB)
	v := &domain.Vehicle{
		RegistrationPlate: "T" + uniqueSuffix() + "TZ",
		ChassisNumber:     "CHASSIS-" + uniqueSuffix(),
		EngineNumber:      "ENGINE-" + uniqueSuffix(),
		VehicleType:       domain.VehicleTypeCar,
		UsageCategory:     "private",
	}
	require.NoError(t, vehicles.SaveNew(ctx, v))
	return v
}

var suffixCounter int
var suffixMu sync.Mutex

// uniqueSuffix avoids colliding unique constraints across fixtures within a
// single test run without reaching for time.Now()/uuid in a hot loop.
func uniqueSuffix() string {
	suffixMu.Lock()
	defer suffixMu.Unlock()
	suffixCounter++
	return string(rune('a' + suffixCounter%26))
}

// racePolicyEngine builds a fresh PolicyEngine wired with nopLocker instead of
// PostgresLocker/RedisLocker, so two concurrent Activate calls race past the
// app-level ActiveForVehicle pre-check and the database's partial unique
// index (uq_policies_one_active_per_vehicle) is the only thing left standing
// between them and a double-active vehicle.
func racePolicyEngine() *PolicyEngine {
	policies := repository.NewPolicyRepository(suite.DB)
	payments := repository.NewPaymentRepository(suite.DB)
	users := repository.NewUserRepository(suite.DB)
	notifications := repository.NewNotificationRepository(suite.DB)
	auditWriter := audit.NewWriter(repository.NewAuditRepository(suite.DB), repository.NewHistoryRepository(suite.DB))
	return NewPolicyEngine(suite.DB, policies, payments, users, notifications, auditWriter, nopLocker{}, nil, nil)
}

// TestPolicyEngine_Activate_ConcurrentRaceEnforcesOneActivePerVehicle proves
// I-POL-1 against the real schema in pkg/testutil/container.go: two draft
// policies for the same vehicle, activated concurrently with the
// serialization lock bypassed, must leave exactly one active — enforced by
// uq_policies_one_active_per_vehicle, not by application logic.
func TestPolicyEngine_Activate_ConcurrentRaceEnforcesOneActivePerVehicle(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "race-policy")
	tctx := suite.TenantContext(tenant)

	vehicle := newTestVehicle(t, tctx)

	policies := repository.NewPolicyRepository(suite.DB)
	now := time.Now()
	makeDraft := func(n string) *domain.Policy {
		p := &domain.Policy{
			VehicleID:     vehicle.ID,
			PolicyNumber:  "POL-RACE-" + n,
			InsurerName:   "Acme Insurance",
			StartDate:     now.Add(-24 * time.Hour),
			EndDate:       now.AddDate(1, 0, 0),
			PremiumAmount: 0, // zero premium: IsFullyPaid(nil) trivially holds, no Payment rows needed
		}
		require.NoError(t, policies.SaveNew(tctx, p))
		return p
	}
	policyA := makeDraft("A")
	policyB := makeDraft("B")

	engineA := racePolicyEngine()
	engineB := racePolicyEngine()
	actor := Actor{UserID: "u-race", Role: domain.RoleManager}

	var wg sync.WaitGroup
	var errA, errB error
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errA = engineA.Activate(tctx, actor, policyA.ID)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errB = engineB.Activate(tctx, actor, policyB.ID)
	}()
	close(start)
	wg.Wait()

	// Exactly one of the two concurrent activations must succeed.
	successes := 0
	var loserErr error
	if errA == nil {
		successes++
	} else {
		loserErr = errA
	}
	if errB == nil {
		successes++
	} else {
		loserErr = errB
	}
	require.Equal(t, 1, successes, "exactly one concurrent Activate must win, got errA=%v errB=%v", errA, errB)
	require.Error(t, loserErr)
	assert.True(t, apperrors.Is(loserErr, apperrors.ErrOverlap),
		"loser must be rejected by the database's partial unique index (ErrOverlap), got %v", loserErr)

	// I-POL-1 itself: the vehicle has exactly one active policy after the race.
	active, err := policies.ActiveForVehicle(tctx, vehicle.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Contains(t, []string{policyA.ID, policyB.ID}, active.ID)
}
