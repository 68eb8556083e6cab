package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// AuditRepository writes AuditEntry and HistoryRecord rows (C8). Both
// writers expose only Append-shaped methods: there is deliberately no
// Update or Delete here, so a bypass of the audit trail would have to skip
// this package entirely rather than call an unused method on it.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one AuditEntry. Intended to run inside the caller's open
// WithTenantRLS transaction alongside the mutation it documents (§4.8).
func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `
		INSERT INTO audit_entries (
			id, tenant_id, actor_user_id, entity_kind, entity_id, action, outcome, before, after, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING at_ts
	`
	err := r.db.QueryRowxContext(ctx, query,
		e.ID, e.TenantID, e.ActorUserID, e.EntityKind, e.EntityID, e.Action, e.Outcome, e.Before, e.After, e.Reason,
	).Scan(&e.At)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByEntity returns audit entries for one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityKind, entityID string) ([]domain.AuditEntry, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var entries []domain.AuditEntry
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, actor_user_id, at_ts, entity_kind, entity_id, action, outcome, before, after, reason
			FROM audit_entries WHERE entity_kind = $1 AND entity_id = $2 ORDER BY at_ts DESC
		`
		return r.db.SelectContext(ctx, &entries, query, entityKind, entityID)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// HistoryRepository writes and reads HistoryRecord snapshots.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append writes the next HistoryRecord version for an entity, inside the
// caller's open transaction. Version is computed as
// max(existing version) + 1, under the same row the UNIQUE(tenant_id,
// entity_kind, entity_id, version) constraint protects against races.
func (r *HistoryRepository) Append(ctx context.Context, tenantID, entityKind, entityID string, snapshot []byte) (*domain.HistoryRecord, error) {
	rec := &domain.HistoryRecord{ID: uuid.New().String(), TenantID: tenantID, EntityKind: entityKind, EntityID: entityID, Snapshot: snapshot}

	query := `
		INSERT INTO history_records (id, tenant_id, entity_kind, entity_id, version, snapshot)
		VALUES ($1, $2, $3, $4,
			COALESCE((SELECT MAX(version) FROM history_records WHERE tenant_id = $2 AND entity_kind = $3 AND entity_id = $4), 0) + 1,
			$5)
		RETURNING version, recorded_at
	`
	err := r.db.QueryRowxContext(ctx, query, rec.ID, tenantID, entityKind, entityID, snapshot).
		Scan(&rec.Version, &rec.RecordedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}
	return rec, nil
}

// AsOf returns the most recent HistoryRecord for an entity whose
// RecordedAt is on or before asOf — the primitive behind time-travel
// queries ("what was the policy at date D").
func (r *HistoryRepository) AsOf(ctx context.Context, entityKind, entityID string, asOf sqlDate) (*domain.HistoryRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var rec domain.HistoryRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, entity_kind, entity_id, version, snapshot, recorded_at
			FROM history_records
			WHERE entity_kind = $1 AND entity_id = $2 AND recorded_at <= $3
			ORDER BY version DESC LIMIT 1
		`
		return r.db.GetContext(ctx, &rec, query, entityKind, entityID, asOf)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
