// Package lifecycle is the compliance lifecycle engine (C5, spec §4.5) — the
// shared state machine shape for Policy and Permit: draft →
// [pending_payment] → active → {cancelled | expired}. Every transition runs
// inside one WithTenantRLS transaction together with its AuditEntry and
// HistoryRecord write, so a mutation and its audit trail never diverge.
package lifecycle

import (
	"context"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
)

// EventPublisher is the narrow slice of pkg/messaging.Publisher the engine
// needs, so tests can substitute pkg/testutil.MockPublisher instead of a
// live RabbitMQ channel.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Clock abstracts time.Now so transition guards (end_date comparisons,
// activated_at/cancelled_at stamps) are deterministic under test.
type Clock func() time.Time

// Actor is the caller attempting a transition. The engine checks Role
// directly against the literal per-operation role sets from the operation
// matrix (§4.2) rather than routing through the wildcard-permission
// authorize() path, which governs the broader handler surface, not this
// inner guard.
type Actor struct {
	UserID string
	Role   domain.Role
}

// canActivateOrCancel reports whether role is authorized to activate or
// cancel a policy/permit (§4.2: admin|manager only — agent and super_admin
// are both excluded, the latter by design since super_admin must never
// perform a write against business data).
func canActivateOrCancel(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager
}

// canDraft reports whether role is authorized to create or edit a
// draft/pending_payment policy or permit (§4.2: "Create policy/permit
// (draft)" — admin|manager|agent, super_admin excluded).
func canDraft(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager || role == domain.RoleAgent
}
