package domain

import "time"

// AuditAction classifies the mutation an AuditEntry records.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionSoftDelete AuditAction = "soft_delete"
	AuditActionTransition AuditAction = "transition"
)

// AuditOutcome records whether the attempted mutation actually applied.
// Failed guard checks (overlap, payment, permission) still write an entry
// so abuse and conflict patterns stay observable (§7).
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeDenied  AuditOutcome = "denied"
	AuditOutcomeRejected AuditOutcome = "rejected"
)

// AuditEntry is an immutable record of one mutation attempt. Append-only:
// the repository layer refuses update/delete against this table.
type AuditEntry struct {
	ID          string       `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	ActorUserID *string      `json:"actor_user_id,omitempty" db:"actor_user_id"`
	At          time.Time    `json:"at" db:"at_ts"`
	EntityKind  string       `json:"entity_kind" db:"entity_kind"`
	EntityID    string       `json:"entity_id" db:"entity_id"`
	Action      AuditAction  `json:"action" db:"action"`
	Outcome     AuditOutcome `json:"outcome" db:"outcome"`
	Before      []byte       `json:"before,omitempty" db:"before"`
	After       []byte       `json:"after,omitempty" db:"after"`
	Reason      *string      `json:"reason,omitempty" db:"reason"`
}

// HistoryRecord is a full snapshot of an entity taken at the moment of one
// logical mutation, enabling time-travel queries ("what was the policy at
// date D"). One row per mutation, never updated.
type HistoryRecord struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	EntityKind string    `json:"entity_kind" db:"entity_kind"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Version    int       `json:"version" db:"version"`
	Snapshot   []byte    `json:"snapshot" db:"snapshot"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}
