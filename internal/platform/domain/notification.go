package domain

import "time"

// NotificationPriority ranks a Notification for delivery adapters; the core
// itself only records intent (§4.10).
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// NotificationKind identifies the event that produced the notification, and
// doubles as the dedupe key's discriminator (§4.9: "(tenant_id, entity_id,
// cycle_date, kind)").
type NotificationKind string

const (
	NotificationKindExpiryReminder NotificationKind = "expiry_reminder"
	NotificationKindCancellation   NotificationKind = "cancellation"
)

// Notification is an in-app record targeting one or more tenant users. The
// core only enqueues; delivery (email/SMS) is an external adapter.
type Notification struct {
	ID           string                `json:"id" db:"id"`
	TenantID     string                `json:"tenant_id" db:"tenant_id"`
	RecipientIDs []string              `json:"recipient_ids" db:"recipient_ids"`
	Kind         NotificationKind      `json:"kind" db:"kind"`
	Priority     NotificationPriority  `json:"priority" db:"priority"`
	Payload      []byte                `json:"payload" db:"payload"`
	DedupeKey    string                `json:"dedupe_key" db:"dedupe_key"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	ReadAt       *time.Time            `json:"read_at,omitempty" db:"read_at"`
}

// IsRead reports whether any recipient has acknowledged this notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
