// Package reconcile is the background sweep (C9, spec §4.9) behind
// cmd/reconciler: once per run it walks every tenant, expires policies and
// permits whose end_date has passed, and buffers an expiry reminder (C10)
// for records still active but inside the tenant's reminder window. It
// never talks to a user directly — every transition it drives goes through
// the Expire method of C5's engines, invoked without an actor.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/notify"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/logger"
	"github.com/fleetcompliance/platform/pkg/metrics"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// Summary totals one Run across every tenant, for logging and tests.
type Summary struct {
	TenantsSwept    int
	PoliciesExpired int
	PermitsExpired  int
	RemindersQueued int
	Failures        int
}

// Sweeper drives one reconciliation pass over every tenant.
type Sweeper struct {
	tenants       *repository.TenantRepository
	policies      *repository.PolicyRepository
	permits       *repository.PermitRepository
	users         *repository.UserRepository
	policyEngine  *lifecycle.PolicyEngine
	permitEngine  *lifecycle.PermitEngine
	notifications *notify.Service
	clock         lifecycle.Clock
	log           *logger.Logger
}

// NewSweeper wires a Sweeper. clock defaults to time.Now when nil.
func NewSweeper(
	tenants *repository.TenantRepository,
	policies *repository.PolicyRepository,
	permits *repository.PermitRepository,
	users *repository.UserRepository,
	policyEngine *lifecycle.PolicyEngine,
	permitEngine *lifecycle.PermitEngine,
	notifications *notify.Service,
	clock lifecycle.Clock,
	log *logger.Logger,
) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		tenants:       tenants,
		policies:      policies,
		permits:       permits,
		users:         users,
		policyEngine:  policyEngine,
		permitEngine:  permitEngine,
		notifications: notifications,
		clock:         clock,
		log:           log,
	}
}

// Run sweeps every active tenant once. A failure on one tenant or one record
// is logged and counted, not fatal to the rest of the run — a single bad row
// should never stop the whole platform's reminders from going out.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	start := s.clock()
	asOf := start
	summary := Summary{}
	defer func() {
		metrics.ReconcileSweepDuration.Observe(s.clock().Sub(start).Seconds())
	}()

	page := repository.Pagination{Page: 1, PageSize: 200}
	for {
		tenants, _, err := s.tenants.List(ctx, page)
		if err != nil {
			return summary, fmt.Errorf("list tenants: %w", err)
		}
		for _, t := range tenants {
			if !t.IsActive() {
				continue
			}
			tenantCtx := tenant.WithTenantID(ctx, t.ID)
			if err := s.sweepTenant(tenantCtx, t, asOf, &summary); err != nil {
				summary.Failures++
				s.logf(t.ID, "tenant sweep failed", err)
			}
			summary.TenantsSwept++
		}
		if len(tenants) < page.Size() {
			break
		}
		page.Page++
	}
	return summary, nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, t *domain.Tenant, asOf time.Time, summary *Summary) error {
	windowDays := t.ReminderWindow()
	asOfDate := asOf.Format("2006-01-02")
	cycleDate := asOf.Truncate(24 * time.Hour)

	recipients, err := s.users.ListByRoles(ctx, []domain.Role{domain.RoleAdmin, domain.RoleManager})
	if err != nil {
		return fmt.Errorf("list notification recipients: %w", err)
	}
	recipientIDs := make([]string, len(recipients))
	for i, u := range recipients {
		recipientIDs[i] = u.ID
	}

	policies, err := s.policies.ListExpiring(ctx, asOfDate, windowDays)
	if err != nil {
		return fmt.Errorf("list expiring policies: %w", err)
	}
	for i := range policies {
		p := &policies[i]
		if err := s.handlePolicy(ctx, p, asOf, cycleDate, recipientIDs, summary); err != nil {
			summary.Failures++
			s.logf(t.ID, "policy "+p.ID+" sweep failed", err)
		}
	}

	permits, err := s.permits.ListExpiring(ctx, asOfDate, windowDays)
	if err != nil {
		return fmt.Errorf("list expiring permits: %w", err)
	}
	for i := range permits {
		p := &permits[i]
		if err := s.handlePermit(ctx, p, asOf, cycleDate, recipientIDs, summary); err != nil {
			summary.Failures++
			s.logf(t.ID, "permit "+p.ID+" sweep failed", err)
		}
	}
	return nil
}

// isDue reports whether a record's end_date has passed as of asOf — the
// boundary between "expire it now" and "it is merely inside the reminder
// window". A record whose end_date equals asOf exactly counts as due: the
// sweep runs with a full timestamp against a date-only end_date, so by the
// time the cron fires on the day it expires, asOf is already past midnight.
func isDue(endDate, asOf time.Time) bool {
	return !endDate.After(asOf)
}

func (s *Sweeper) handlePolicy(ctx context.Context, p *domain.Policy, asOf, cycleDate time.Time, recipientIDs []string, summary *Summary) error {
	if isDue(p.EndDate, asOf) {
		if _, err := s.policyEngine.Expire(ctx, p.ID); err != nil {
			return err
		}
		summary.PoliciesExpired++
		metrics.ReconcileExpiredTotal.WithLabelValues("policy").Inc()
		return nil
	}

	if len(recipientIDs) == 0 {
		return nil
	}
	payload := map[string]string{"policy_id": p.ID, "vehicle_id": p.VehicleID, "end_date": p.EndDate.Format("2006-01-02")}
	queued, err := s.notifications.EnqueueExpiryReminder(ctx, recipientIDs, p.ID, cycleDate, payload)
	if err != nil {
		return err
	}
	if queued {
		summary.RemindersQueued++
		metrics.RemindersQueuedTotal.Inc()
	}
	return nil
}

func (s *Sweeper) handlePermit(ctx context.Context, p *domain.Permit, asOf, cycleDate time.Time, recipientIDs []string, summary *Summary) error {
	if isDue(p.EndDate, asOf) {
		if _, err := s.permitEngine.Expire(ctx, p.ID); err != nil {
			return err
		}
		summary.PermitsExpired++
		metrics.ReconcileExpiredTotal.WithLabelValues("permit").Inc()
		return nil
	}

	if len(recipientIDs) == 0 {
		return nil
	}
	payload := map[string]string{"permit_id": p.ID, "vehicle_id": p.VehicleID, "permit_type": p.PermitType, "end_date": p.EndDate.Format("2006-01-02")}
	queued, err := s.notifications.EnqueueExpiryReminder(ctx, recipientIDs, p.ID, cycleDate, payload)
	if err != nil {
		return err
	}
	if queued {
		summary.RemindersQueued++
		metrics.RemindersQueuedTotal.Inc()
	}
	return nil
}

func (s *Sweeper) logf(tenantID, msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Error().Str("tenant_id", tenantID).Err(err).Msg(msg)
}
