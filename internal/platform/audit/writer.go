// Package audit is the single transactional writer for AuditEntry and
// HistoryRecord rows (C8, spec §4.8). Writer.Record appends through the
// WithTenantRLS transaction already open on ctx. Its only callers are the
// policy and permit lifecycle engines: their transitions and edits record
// inside the same transaction as the mutation, while CreateDraft records in
// a second transaction after the insert has committed. Vehicle, customer,
// ownership, payment, dynamic-field, tenant and user writes do not call it
// and leave no audit entry or history record.
package audit

import (
	"context"
	"encoding/json"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
)

// Writer records one AuditEntry and, for successful mutations, one
// HistoryRecord snapshot.
type Writer struct {
	audit   *repository.AuditRepository
	history *repository.HistoryRepository
}

// NewWriter creates an audit Writer.
func NewWriter(auditRepo *repository.AuditRepository, historyRepo *repository.HistoryRepository) *Writer {
	return &Writer{audit: auditRepo, history: historyRepo}
}

// Record appends an AuditEntry for one mutation attempt and, when outcome is
// success, a HistoryRecord snapshot of the entity's new state. before/after
// may be nil (e.g. before is nil on create, after is nil on a denied
// attempt); both are marshalled as JSON.
func (w *Writer) Record(ctx context.Context, tenantID string, actorUserID *string, entityKind, entityID string, action domain.AuditAction, outcome domain.AuditOutcome, before, after interface{}, reason *string) error {
	beforeJSON, err := marshalOrNil(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOrNil(after)
	if err != nil {
		return err
	}

	entry := &domain.AuditEntry{
		TenantID:    tenantID,
		ActorUserID: actorUserID,
		EntityKind:  entityKind,
		EntityID:    entityID,
		Action:      action,
		Outcome:     outcome,
		Before:      beforeJSON,
		After:       afterJSON,
		Reason:      reason,
	}
	if err := w.audit.Append(ctx, entry); err != nil {
		return err
	}

	if outcome != domain.AuditOutcomeSuccess || afterJSON == nil {
		return nil
	}
	_, err = w.history.Append(ctx, tenantID, entityKind, entityID, afterJSON)
	return err
}

func marshalOrNil(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
