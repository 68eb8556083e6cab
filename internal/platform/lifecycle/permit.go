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

// PermitEngine mirrors PolicyEngine for the Permit lifecycle: draft →
// active → {cancelled | expired}, with no pending_payment step and no
// payment-completeness guard on activation.
type PermitEngine struct {
	db            *database.DB
	permits       *repository.PermitRepository
	users         *repository.UserRepository
	notifications *repository.NotificationRepository
	audit         *audit.Writer
	locker        Locker
	publisher     EventPublisher
	now           Clock
}

// NewPermitEngine wires a PermitEngine. now defaults to time.Now when nil.
func NewPermitEngine(
	db *database.DB,
	permits *repository.PermitRepository,
	users *repository.UserRepository,
	notifications *repository.NotificationRepository,
	auditWriter *audit.Writer,
	locker Locker,
	publisher EventPublisher,
	now Clock,
) *PermitEngine {
	if now == nil {
		now = time.Now
	}
	return &PermitEngine{
		db:            db,
		permits:       permits,
		users:         users,
		notifications: notifications,
		audit:         auditWriter,
		locker:        locker,
		publisher:     publisher,
		now:           now,
	}
}

// CreateDraft inserts a new Permit in draft status (§4.2: "Create
// policy/permit (draft)" — admin|manager|agent).
func (e *PermitEngine) CreateDraft(ctx context.Context, actor Actor, p *domain.Permit) (*domain.Permit, error) {
	if !canDraft(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, p.VehicleID, "only admin, manager or agent may create a permit")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	if err := e.permits.SaveNew(ctx, p); err != nil {
		return nil, err
	}
	if err := e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		return e.audit.Record(ctx, tenantID, actorID(actor), "permit", p.ID, domain.AuditActionCreate, domain.AuditOutcomeSuccess, nil, p, nil)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// Activate runs the activation guard sequence (§4.5), minus the
// payment-completeness guard that only applies to Policy:
//  1. actor role ∈ {admin, manager}
//  2. no conflicting active permit for (vehicle_id, permit_type) (I-PERM-1)
//  3. end_date > today
func (e *PermitEngine) Activate(ctx context.Context, actor Actor, permitID string) (*domain.Permit, error) {
	if !canActivateOrCancel(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, permitID, "permit must be activated by admin or manager")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Permit
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.permits.GetForUpdate(ctx, permitID)
		if err != nil {
			return err
		}
		key := lockKey(tenantID, p.VehicleID, p.PermitType)

		return e.locker.WithLock(ctx, key, func(ctx context.Context) error {
			before := *p

			if !p.CanActivate() {
				appErr := errors.InvalidTransition(string(p.Status), string(domain.PermitStatusActive))
				e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionTransition, appErr)
				metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusActive), "denied").Inc()
				return appErr
			}

			if conflict, err := e.permits.ActiveForVehicleAndType(ctx, p.VehicleID, p.PermitType); err != nil {
				return err
			} else if conflict != nil && conflict.ID != p.ID {
				appErr := errors.Overlap("vehicle already has an active permit of this type")
				e.recordRejected(ctx, tenantID, actor, p.ID, appErr)
				metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusActive), "rejected").Inc()
				return appErr
			}

			now := e.now()
			if !p.EndDate.After(now) {
				appErr := errors.Validation(map[string]string{"end_date": "must be in the future to activate"})
				e.recordRejected(ctx, tenantID, actor, p.ID, appErr)
				metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusActive), "rejected").Inc()
				return appErr
			}

			from := p.Status
			p.Status = domain.PermitStatusActive
			p.ActivatedAt = &now
			if err := e.permits.SaveTransition(ctx, p, from); err != nil {
				return err
			}
			if err := e.audit.Record(ctx, tenantID, actorID(actor), "permit", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
				return err
			}
			result = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPermitActivated, permitTransitionPayload(tenantID, result, domain.PermitStatusDraft))
	metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusActive), "success").Inc()
	return result, nil
}

// Cancel moves a Permit from draft or active to cancelled.
func (e *PermitEngine) Cancel(ctx context.Context, actor Actor, permitID string, reason domain.PermitCancellationReason, note *string) (*domain.Permit, error) {
	if !canActivateOrCancel(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, permitID, "permit must be cancelled by admin or manager")
	}
	if !domain.ValidPermitCancellationReasons[reason] {
		return nil, errors.Validation(map[string]string{"cancellation_reason": "not a recognized reason"})
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Permit
	var fromStatus domain.PermitStatus
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.permits.GetForUpdate(ctx, permitID)
		if err != nil {
			return err
		}
		before := *p

		if !p.CanCancel() {
			appErr := errors.InvalidTransition(string(p.Status), string(domain.PermitStatusCancelled))
			e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionTransition, appErr)
			metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusCancelled), "denied").Inc()
			return appErr
		}

		now := e.now()
		fromStatus = p.Status
		p.Status = domain.PermitStatusCancelled
		p.CancelledAt = &now
		p.CancelledBy = &actor.UserID
		p.CancellationReason = &reason
		p.CancellationNote = note
		if err := e.permits.SaveTransition(ctx, p, fromStatus); err != nil {
			return err
		}
		cancelReason := string(reason)
		if err := e.audit.Record(ctx, tenantID, actorID(actor), "permit", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, &cancelReason); err != nil {
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
				"permit_id":   p.ID,
				"vehicle_id":  p.VehicleID,
				"permit_type": p.PermitType,
				"reason":      cancelReason,
			})
			n := &domain.Notification{
				TenantID:     tenantID,
				RecipientIDs: ids,
				Kind:         domain.NotificationKindCancellation,
				Priority:     domain.NotificationPriorityNormal,
				Payload:      payload,
				DedupeKey:    "permit-cancel:" + p.ID,
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
	e.publish(ctx, messaging.EventPermitCancelled, permitTransitionPayload(tenantID, result, fromStatus))
	metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusCancelled), "success").Inc()
	return result, nil
}

// Expire moves an active Permit whose end_date has passed to expired.
// Driven by the reconciler (C9), not directly by a user.
func (e *PermitEngine) Expire(ctx context.Context, permitID string) (*domain.Permit, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Permit
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.permits.GetForUpdate(ctx, permitID)
		if err != nil {
			return err
		}
		before := *p

		if !p.CanExpire() {
			return errors.InvalidTransition(string(p.Status), string(domain.PermitStatusExpired))
		}
		now := e.now()
		if !now.After(p.EndDate) {
			return errors.Validation(map[string]string{"end_date": "has not yet passed"})
		}

		from := p.Status
		p.Status = domain.PermitStatusExpired
		if err := e.permits.SaveTransition(ctx, p, from); err != nil {
			return err
		}
		if err := e.audit.Record(ctx, tenantID, nil, "permit", p.ID, domain.AuditActionTransition, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, messaging.EventPermitExpired, permitTransitionPayload(tenantID, result, domain.PermitStatusActive))
	metrics.PermitTransitionsTotal.WithLabelValues(string(domain.PermitStatusExpired), "success").Inc()
	return result, nil
}

// Edit updates mutable fields on a still-draft Permit (I-PERM-2).
func (e *PermitEngine) Edit(ctx context.Context, actor Actor, permitID string, referenceNumber, issuingAuthority string, startDate, endDate time.Time) (*domain.Permit, error) {
	if !canDraft(actor.Role) {
		return nil, e.denyOutsideTx(ctx, actor, permitID, "only admin, manager or agent may edit a permit")
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var result *domain.Permit
	err = e.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		p, err := e.permits.GetForUpdate(ctx, permitID)
		if err != nil {
			return err
		}
		if p.IsImmutable() {
			appErr := errors.Immutable("permit is not editable in its current status")
			e.recordDenied(ctx, tenantID, actor, p.ID, domain.AuditActionUpdate, appErr)
			return appErr
		}

		before := *p
		p.ReferenceNumber = referenceNumber
		p.IssuingAuthority = issuingAuthority
		p.StartDate = startDate
		p.EndDate = endDate
		if err := e.permits.SaveEdit(ctx, p); err != nil {
			return err
		}
		if err := e.audit.Record(ctx, tenantID, actorID(actor), "permit", p.ID, domain.AuditActionUpdate, domain.AuditOutcomeSuccess, &before, p, nil); err != nil {
			return err
		}
		result = p
		return nil
	})
	return result, err
}

func (e *PermitEngine) recordDenied(ctx context.Context, tenantID string, actor Actor, entityID string, action domain.AuditAction, appErr error) {
	msg := appErr.Error()
	_ = e.audit.Record(ctx, tenantID, actorID(actor), "permit", entityID, action, domain.AuditOutcomeDenied, nil, nil, &msg)
}

func (e *PermitEngine) recordRejected(ctx context.Context, tenantID string, actor Actor, entityID string, appErr error) {
	msg := appErr.Error()
	_ = e.audit.Record(ctx, tenantID, actorID(actor), "permit", entityID, domain.AuditActionTransition, domain.AuditOutcomeRejected, nil, nil, &msg)
}

func (e *PermitEngine) denyOutsideTx(ctx context.Context, actor Actor, entityID, message string) error {
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

func (e *PermitEngine) publish(ctx context.Context, eventType string, data interface{}) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Publish(ctx, eventType, data)
}

func permitTransitionPayload(tenantID string, p *domain.Permit, from domain.PermitStatus) messaging.PermitTransitionEvent {
	return messaging.PermitTransitionEvent{
		TenantID:   tenantID,
		PermitID:   p.ID,
		VehicleID:  p.VehicleID,
		PermitType: p.PermitType,
		FromStatus: string(from),
		ToStatus:   string(p.Status),
	}
}
