// Package notify is the notification buffer (C10, spec §4.10). It only
// records intent: enqueue appends a Notification row and fans out a
// best-effort event over RabbitMQ for external delivery adapters (email,
// SMS) to pick up — this package never sends a message itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
)

// EventPublisher is the narrow slice of pkg/messaging.Publisher this package
// needs, mirroring lifecycle.EventPublisher so the same
// pkg/testutil.MockPublisher substitutes in tests.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Service is the notification buffer's entry point.
type Service struct {
	notifications *repository.NotificationRepository
	publisher     EventPublisher
}

// NewService builds a notify Service.
func NewService(notifications *repository.NotificationRepository, publisher EventPublisher) *Service {
	return &Service{notifications: notifications, publisher: publisher}
}

// ExpiryReminderDedupeKey builds the dedupe key spec §4.9 requires:
// (tenant_id, entity_id, cycle_date, kind). tenant_id is not included in the
// string itself — it is already the other half of the notifications
// table's UNIQUE(tenant_id, dedupe_key) constraint — so cycleDate's calendar
// date plus entityID plus kind is enough to make one reconciler run
// idempotent across retries on the same day.
func ExpiryReminderDedupeKey(entityID string, cycleDate time.Time, kind domain.NotificationKind) string {
	return fmt.Sprintf("%s:%s:%s", entityID, cycleDate.Format("2006-01-02"), kind)
}

// EnqueueExpiryReminder buffers an expiry-reminder notification for one
// policy or permit, addressed to recipientIDs. Returns enqueued=false with
// no error when the reconciler has already issued this exact reminder for
// this cycle (spec §4.9 idempotence).
func (s *Service) EnqueueExpiryReminder(ctx context.Context, recipientIDs []string, entityID string, cycleDate time.Time, payload interface{}) (bool, error) {
	return s.enqueue(ctx, recipientIDs, domain.NotificationKindExpiryReminder, domain.NotificationPriorityNormal,
		ExpiryReminderDedupeKey(entityID, cycleDate, domain.NotificationKindExpiryReminder), payload)
}

// EnqueueCancellation buffers a cancellation notification, addressed per
// spec §4.10's example recipient rule (all admins+managers in tenant — the
// caller resolves recipientIDs via repository.UserRepository.ListByRoles).
// The dedupe key includes a uuid-free timestamp component so repeated
// cancellations of different entities never collide, while a retried
// publish of the same cancellation is still deduped.
func (s *Service) EnqueueCancellation(ctx context.Context, recipientIDs []string, entityID string, at time.Time, payload interface{}) (bool, error) {
	dedupeKey := fmt.Sprintf("%s:%s:%s", entityID, at.Format(time.RFC3339), domain.NotificationKindCancellation)
	return s.enqueue(ctx, recipientIDs, domain.NotificationKindCancellation, domain.NotificationPriorityHigh, dedupeKey, payload)
}

func (s *Service) enqueue(ctx context.Context, recipientIDs []string, kind domain.NotificationKind, priority domain.NotificationPriority, dedupeKey string, payload interface{}) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	n := &domain.Notification{
		RecipientIDs: recipientIDs,
		Kind:         kind,
		Priority:     priority,
		Payload:      body,
		DedupeKey:    dedupeKey,
	}

	enqueued, err := s.notifications.Enqueue(ctx, n)
	if err != nil {
		return false, err
	}
	if enqueued && s.publisher != nil {
		// Best-effort: a dropped fan-out event does not roll back the
		// buffered notification, it just delays an external adapter.
		_ = s.publisher.Publish(ctx, "notification."+string(kind), n)
	}
	return enqueued, nil
}

// ListForRecipient returns notifications addressed to userID, newest first.
func (s *Service) ListForRecipient(ctx context.Context, userID string, page repository.Pagination) ([]*domain.Notification, error) {
	return s.notifications.ListForRecipient(ctx, userID, page)
}

// MarkRead stamps read_at for a notification.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.notifications.MarkRead(ctx, id)
}
