package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	apperrors "github.com/fleetcompliance/platform/pkg/errors"
)

// racePermitEngine mirrors racePolicyEngine: nopLocker bypasses serialization
// so uq_permits_one_active_per_vehicle_type is the only thing enforcing
// I-PERM-1 during the race.
func racePermitEngine() *PermitEngine {
	permits := repository.NewPermitRepository(suite.DB)
	users := repository.NewUserRepository(suite.DB)
	notifications := repository.NewNotificationRepository(suite.DB)
	auditWriter := audit.NewWriter(repository.NewAuditRepository(suite.DB), repository.NewHistoryRepository(suite.DB))
	return NewPermitEngine(suite.DB, permits, users, notifications, auditWriter, nopLocker{}, nil, nil)
}

// TestPermitEngine_Activate_ConcurrentRaceEnforcesOneActivePerVehicleAndType
// proves I-PERM-1 against the real schema: two draft permits of the same
// permit_type for the same vehicle, activated concurrently with the
// serialization lock bypassed, must leave exactly one active — enforced by
// uq_permits_one_active_per_vehicle_type.
func TestPermitEngine_Activate_ConcurrentRaceEnforcesOneActivePerVehicleAndType(t *testing.T) {
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "race-permit")
	tctx := suite.TenantContext(tenant)

	vehicle := newTestVehicle(t, tctx)

	permits := repository.NewPermitRepository(suite.DB)
	now := time.Now()
	makeDraft := func(n string) *domain.Permit {
		p := &domain.Permit{
			VehicleID:        vehicle.ID,
			PermitType:       domain.PermitTypeLATRALicense,
			ReferenceNumber:  "LATRA-RACE-" + n,
			IssuingAuthority: "LATRA",
			StartDate:        now.Add(-24 * time.Hour),
			EndDate:          now.AddDate(1, 0, 0),
		}
		require.NoError(t, permits.SaveNew(tctx, p))
		return p
	}
	permitA := makeDraft("A")
	permitB := makeDraft("B")

	engineA := racePermitEngine()
	engineB := racePermitEngine()
	actor := Actor{UserID: "u-race", Role: domain.RoleManager}

	var wg sync.WaitGroup
	var errA, errB error
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errA = engineA.Activate(tctx, actor, permitA.ID)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errB = engineB.Activate(tctx, actor, permitB.ID)
	}()
	close(start)
	wg.Wait()

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

	active, err := permits.ActiveForVehicleAndType(tctx, vehicle.ID, domain.PermitTypeLATRALicense)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Contains(t, []string{permitA.ID, permitB.ID}, active.ID)
}
