package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on the compliance and notification exchanges.
const (
	// Lifecycle transitions (C5)
	EventPolicyActivated = "policy.activated"
	EventPolicyCancelled = "policy.cancelled"
	EventPolicyExpired   = "policy.expired"
	EventPermitActivated = "permit.activated"
	EventPermitCancelled = "permit.cancelled"
	EventPermitExpired   = "permit.expired"

	// Notification buffer (C10) — the core only enqueues. notify.Service
	// publishes each fresh row under "notification." + its kind, not under
	// this name.
	EventNotificationCreated = "notification.created"

	// Audit (C8) — name for mirroring AuditEntry writes to external SIEM
	// ingestion; no code in this repository publishes it.
	EventAuditEntryCreated = "audit.entry.created"
)

// Exchange names
const (
	ExchangeLifecycleEvents     = "compliance.lifecycle.events"
	ExchangeNotificationEvents  = "compliance.notification.events"
	ExchangeAuditEvents         = "compliance.audit.events"
)

// Event is the base event envelope published to RabbitMQ.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// PolicyTransitionEvent is published whenever a Policy crosses a lifecycle
// transition the reconciler or an operator needs to observe externally.
type PolicyTransitionEvent struct {
	TenantID   string `json:"tenant_id"`
	PolicyID   string `json:"policy_id"`
	VehicleID  string `json:"vehicle_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// PermitTransitionEvent is the Permit analogue of PolicyTransitionEvent.
type PermitTransitionEvent struct {
	TenantID   string `json:"tenant_id"`
	PermitID   string `json:"permit_id"`
	VehicleID  string `json:"vehicle_id"`
	PermitType string `json:"permit_type"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// NotificationCreatedEvent mirrors a Notification row (C10) for delivery
// adapters that live outside this repository.
type NotificationCreatedEvent struct {
	TenantID       string   `json:"tenant_id"`
	NotificationID string   `json:"notification_id"`
	RecipientIDs   []string `json:"recipient_ids"`
	Kind           string   `json:"kind"`
	Priority       string   `json:"priority"`
}

// AuditEntryCreatedEvent mirrors an AuditEntry write (C8).
type AuditEntryCreatedEvent struct {
	TenantID   string `json:"tenant_id"`
	EntryID    string `json:"entry_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	ActorID    string `json:"actor_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
