package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// NotificationRepository handles Notification persistence (C10). The core
// only enqueues: there is no Send method here, only Enqueue/List/MarkRead.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Enqueue inserts a Notification. DedupeKey collisions return a nil error
// with Enqueued=false so reconciler callers can treat "already enqueued
// this cycle" as a normal outcome rather than a failure (§4.9 idempotence).
func (r *NotificationRepository) Enqueue(ctx context.Context, n *domain.Notification) (enqueued bool, err error) {
	tenantID, terr := tenant.TenantID(ctx)
	if terr != nil {
		return false, errors.TenantUnbound()
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO notifications (id, tenant_id, recipient_ids, kind, priority, payload, dedupe_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id, dedupe_key) DO NOTHING
			RETURNING created_at
		`
		scanErr := r.db.QueryRowxContext(ctx, query,
			n.ID, tenantID, pq.Array(n.RecipientIDs), n.Kind, n.Priority, n.Payload, n.DedupeKey,
		).Scan(&n.CreatedAt)
		if scanErr == sql.ErrNoRows {
			enqueued = false
			return nil
		}
		if scanErr != nil {
			if appErr := database.MapPQError(scanErr); appErr != nil {
				return appErr
			}
			return scanErr
		}
		enqueued = true
		return nil
	})
	return enqueued, err
}

// ListForRecipient returns notifications addressed to userID, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, userID string, page Pagination) ([]*domain.Notification, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var notifications []*domain.Notification
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, recipient_ids, kind, priority, payload, dedupe_key, created_at, read_at
			FROM notifications WHERE $1 = ANY(recipient_ids)
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`
		return r.db.SelectContext(ctx, &notifications, query, userID, page.Size(), page.Offset())
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead stamps read_at for a notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		result, execErr := r.db.ExecContext(ctx,
			"UPDATE notifications SET read_at = NOW() WHERE id = $1 AND read_at IS NULL", id)
		if execErr != nil {
			return execErr
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("notification")
		}
		return nil
	})
}
