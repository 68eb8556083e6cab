package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/audit"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/messaging"
	"github.com/fleetcompliance/platform/pkg/metrics"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// PolicyEngine drives the Policy state machine: draft → pending_payment* →
// active → {cancelled | expired}. Publisher may be nil — transitions still
// commit and audit correctly, they simply skip the external event fan-out
// (useful for tests and for deployments that haven't wired RabbitMQ).
type PolicyEngine struct {
	db            *database.DB
	policies      *repository.PolicyRepository
	payments      *repository.PaymentRepository
	users         *repository.UserRepository
	notifications *repository.NotificationRepository
	audit         *audit.Writer
	locker        Locker
	publisher     EventPublisher
	now           Clock
}

// NewPolicyEngine wires a PolicyEngine. now defaults to time.Now when nil.
func NewPolicyEngine(
	db *database.DB,
	policies *repository.PolicyRepository,
	payments *repository.PaymentRepository,
	users *repository.UserRepository,
	notifications *repository.NotificationRepository,
	auditWriter *audit.Writer,
	locker Locker,
	publisher EventPublisher,
	now Clock,
) *PolicyEngine {
	if now == nil {
		now = time.Now
	}
	return &PolicyEngine{
		db:            db,
		policies:      policies,
		payments:      payments,
		users:         users,
		notifications: notifications,
		audit:         auditWriter,
		locker:        locker,
		publisher:     publisher,
		now:           now,
	}
}

// CreateDraft inserts a new Policy in draft status (§4.2: "Create
// policy/permit (draft)" — admin|manager|agent).
func (e *PolicyEngine) CreateDraft(ctx context.Context, actor Actor, p *domain.Policy) (*domain.Policy, error) {
	if !canDraft(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, p.VehicleID, "only admin, manager or agent may create a policy")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	if err := e.policies.SaveNew(ctx, p); err != nil {
		return nil, err
	}
	if err := e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		return e.audit.Record(ctx, tenantID, actorID(actor), "policy", p.ID, domain.AuditActionCreate, domain.AuditOutcomeSuccess, nil, p, nil)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// RequestActivation moves a Policy from draft to pending_payment — the
// policy-only step ahead of Activate that signals coverage has been sold but
// premium collection isn't complete yet.
func (e *PolicyEngine) RequestActivation(ctx context.Context, actor Actor, policyID string) (*domain.Policy, error) {
	if !canDraft(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, policyID, "only admin, manager or agent may request activation")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Policy
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.policies.GetForUpdate(ctx, policyID)
		if err != nil {
			return err
		}
		if p.Status != domain.PolicyStatusDraft {
			e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionTransition, errors.InvalidTransition(string(p.Status), string(domain.PolicyStatusPendingPayment)))
			metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusPendingPayment), "denied").Inc()
			return errors.InvalidTransition(string(p.Status), string(domain.PolicyStatusPendingPayment))
		}

		before := *p
		from := p.Status
		p.Status = domain.PolicyStatusPendingPayment
		if err := e.policies.SaveTransition(ctx, p, from); err != nil {
			return err
		}
		reason := "activation requested"
		if err := e.audit.Record(ctx, tenantID, actorID(actor), "policy", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, &reason); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPolicyActivated+".requested", policyTransitionPayload(tenantID, result, domain.PolicyStatusDraft))
	metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusPendingPayment), "success").Inc()
	return result, nil
}

// Activate runs the full activation guard sequence (§4.5):
//  1. actor role ∈ {admin, manager}
//  2. sum(verified payments) ≥ premium_amount (I-POL-3)
//  3. no conflicting active policy for the vehicle (I-POL-1)
//  4. end_date > today
//
// Guard 3 is enforced twice: once here as a fast pre-write check under the
// serialization lock, and again by the database's partial unique index,
// which is the final authority if two requests ever race past the lock.
func (e *PolicyEngine) Activate(ctx context.Context, actor Actor, policyID string) (*domain.Policy, error) {
	if !canActivateOrCancel(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, policyID, "policy must be activated by admin or manager")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Policy
	var from domain.PolicyStatus
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.policies.GetForUpdate(ctx, policyID)
		if err != nil {
			return err
		}
		key := lockKey(tenantID, p.VehicleID, "")

		return e.locker.WithLock(ctx, key, func(ctx context.Context) error {
			before := *p

			if !p.CanActivate() {
				appErr := errors.InvalidTransition(string(p.Status), string(domain.PolicyStatusActive))
				e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionTransition, appErr)
				metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusActive), "denied").Inc()
				return appErr
			}

			payments, err := e.payments.ListByPolicyTx(ctx, p.ID)
			if err != nil {
				return err
			}
			if !p.IsFullyPaid(payments) {
				appErr := errors.PaymentIncomplete("outstanding premium balance prevents activation")
				e.recordRejected(ctx, tenantID, actor, p.ID, appErr)
				metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusActive), "rejected").Inc()
				return appErr
			}

			if conflict, err := e.policies.ActiveForVehicle(ctx, p.VehicleID); err != nil {
				return err
			} else if conflict != nil && conflict.ID != p.ID {
				appErr := errors.Overlap("vehicle already has an active policy")
				e.recordRejected(ctx, tenantID, actor, p.ID, appErr)
				metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusActive), "rejected").Inc()
				return appErr
			}

			now := e.now()
			if !p.EndDate.After(now) {
				appErr := errors.Validation(map[string]string{"end_date": "must be in the future to activate"})
				e.recordRejected(ctx, tenantID, actor, p.ID, appErr)
				metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusActive), "rejected").Inc()
				return appErr
			}

			from = p.Status
			p.Status = domain.PolicyStatusActive
			p.ActivatedAt = &now
			if err := e.policies.SaveTransition(ctx, p, from); err != nil {
				return err
			}
			if err := e.audit.Record(ctx, tenantID, actorID(actor), "policy", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
				return err
			}
			result = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPolicyActivated, policyTransitionPayload(tenantID, result, from))
	metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusActive), "success").Inc()
	return result, nil
}

// Cancel moves a Policy from draft, pending_payment or active to cancelled.
func (e *PolicyEngine) Cancel(ctx context.Context, actor Actor, policyID string, reason domain.PolicyCancellationReason, note *string) (*domain.Policy, error) {
	if !canActivateOrCancel(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, policyID, "policy must be cancelled by admin or manager")
	}
	if !domain.ValidPolicyCancellationReasons[reason] {
		return nil, errors.Validation(map[string]string{"cancellation_reason": "not a recognized reason"})
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Policy
	var fromStatus domain.PolicyStatus
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.policies.GetForUpdate(ctx, policyID)
		if err != nil {
			return err
		}
		before := *p

		if !p.CanCancel() {
			appErr := errors.InvalidTransition(string(p.Status), string(domain.PolicyStatusCancelled))
			e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionTransition, appErr)
			metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusCancelled), "denied").Inc()
			return appErr
		}

		now := e.now()
		fromStatus = p.Status
		p.Status = domain.PolicyStatusCancelled
		p.CancelledAt = &now
		p.CancelledBy = &actor.UserID
		p.CancellationReason = &reason
		p.CancellationNote = note
		if err := e.policies.SaveTransition(ctx, p, fromStatus); err != nil {
			return err
		}
		cancelReason := string(reason)
		if err := e.audit.Record(ctx, tenantID, actorID(actor), "policy", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, &cancelReason); err != nil {
			return err
		}

		recipients, err := e.users.ListByRoles(ctx, []domain.Role{domain.RoleAdmin, domain.RoleManager})
		if err != nil {
			return err
		}
		if len(recipients) > 0 {
			ids := make([]string, len(recipients))
			for i, u := range recipients {
				ids[i] = u.ID
			}
			payload, _ := json.Marshal(map[string]string{
				"policy_id":  p.ID,
				"vehicle_id": p.VehicleID,
				"reason":     cancelReason,
			})
			n := &domain.Notification{
				TenantID:     tenantID,
				RecipientIDs: ids,
				Kind:         domain.NotificationKindCancellation,
				Priority:     domain.NotificationPriorityNormal,
				Payload:      payload,
				DedupeKey:    "policy-cancel:" + p.ID,
			}
			if _, err := e.notifications.Enqueue(ctx, n); err != nil {
				return err
			}
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPolicyCancelled, policyTransitionPayload(tenantID, result, fromStatus))
	metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusCancelled), "success").Inc()
	return result, nil
}

// Expire moves an active Policy whose end_date has passed to expired. No
// role guard — this transition is driven by the reconciler (C9), never
// directly by a user.
func (e *PolicyEngine) Expire(ctx context.Context, policyID string) (*domain.Policy, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Policy
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.policies.GetForUpdate(ctx, policyID)
		if err != nil {
			return err
		}
		before := *p

		if !p.CanExpire() {
			return errors.InvalidTransition(string(p.Status), string(domain.PolicyStatusExpired))
		}
		now := e.now()
		if !now.After(p.EndDate) {
			return errors.Validation(map[string]string{"end_date": "has not yet passed"})
		}

		from := p.Status
		p.Status = domain.PolicyStatusExpired
		if err := e.policies.SaveTransition(ctx, p, from); err != nil {
			return err
		}
		if err := e.audit.Record(ctx, tenantID, nil, "policy", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPolicyExpired, policyTransitionPayload(tenantID, result, domain.PolicyStatusActive))
	metrics.PolicyTransitionsTotal.WithLabelValues(string(domain.PolicyStatusExpired), "success").Inc()
	return result, nil
}

// Edit updates mutable fields on a still-editable (draft/pending_payment)
// Policy (I-POL-2).
func (e *PolicyEngine) Edit(ctx context.Context, actor Actor, policyID string, insurerName string, startDate, endDate time.Time, premium float64) (*domain.Policy, error) {
	if !canDraft(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, policyID, "only admin, manager or agent may edit a policy")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Policy
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.policies.GetForUpdate(ctx, policyID)
		if err != nil {
			return err
		}
		if p.IsImmutable() {
			appErr := errors.Immutable("policy is not editable in its current status")
			e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionUpdate, appErr)
			return appErr
		}

		before := *p
		p.InsurerName = insurerName
		p.StartDate = startDate
		p.EndDate = endDate
		p.PremiumAmount = premium
		if err := e.policies.SaveEdit(ctx, p); err != nil {
			return err
		}
		if err := e.audit.Record(ctx, tenantID, actorID(actor), "policy", p.ID, domain.AuditActionUpdate, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
			return err
		}
		result = p
		return nil
	})
	return result, err
}

func (e *PolicyEngine) recordDenied(ctx context.Context, tenantID string, actor Actor, entityID string, action domain.AuditAction, appErr error) {
	msg := appErr.Error()
	_ = e.audit.Record(ctx, tenantID, actorID(actor), "policy", entityID, action, domain.AuditOutcomeDenied, nil, nil, &msg)
}

func (e *PolicyEngine) recordRejected(ctx context.Context, tenantID string, actor Actor, entityID string, appErr error) {
	msg := appErr.Error()
	_ = e.audit.Record(ctx, tenantID, actorID(actor), "policy", entityID, domain.AuditActionTransition, domain.AuditOutcomeRejected, nil, nil, &msg)
}

// denyOutsideTx records a denied audit entry for a guard that fails before
// any transaction is opened (the role check), using its own short-lived
// WithTenantRLS so the attempt is still observable per §7.
func (e *PolicyEngine) denyOutsideTx(ctx context.Context, actor Actor, entityID, message string) error {
	tenantID, terr := tenant.TenantID(ctx)
	if terr != nil {
		return errors.TenantUnbound()
	}
	appErr := errors.Forbidden(message)
	_ = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		e.recordDenied(ctx, tenantID, actor, entityID, domain.AuditActionTransition, appErr)
		return nil
	})
	return appErr
}

func (e *PolicyEngine) publish(ctx context.Context, eventType string, data interface{}) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Publish(ctx, eventType, data)
}

func actorID(actor Actor) *string {
	if actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func policyTransitionPayload(tenantID string, p *domain.Policy, from domain.PolicyStatus) messaging.PolicyTransitionEvent {
	return messaging.PolicyTransitionEvent{
		TenantID:   tenantID,
		PolicyID:   p.ID,
		VehicleID:  p.VehicleID,
		FromStatus: string(from),
		ToStatus:   string(p.Status),
	}
}
