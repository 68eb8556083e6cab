package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// PermitRepository handles Permit persistence (C3/C4), covering both LATRA
// registrations and regulatory permits uniformly — permit_type is data, not
// a schema branch (§3). Mirrors PolicyRepository's transition shape, backed
// by uq_permits_one_active_per_vehicle_type for I-PERM-1.
type PermitRepository struct {
	db *database.DB
}

// NewPermitRepository creates a new permit repository.
func NewPermitRepository(db *database.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

const permitColumns = `
	id, tenant_id, vehicle_id, permit_type, reference_number, issuing_authority,
	start_date, end_date, status, activated_at, cancelled_at, cancelled_by,
	cancellation_reason, cancellation_note, created_at, updated_at, deleted_at
`

// SaveNew inserts a new Permit in draft status.
func (r *PermitRepository) SaveNew(ctx context.Context, p *domain.Permit) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = domain.PermitStatusDraft
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO permits (
				id, tenant_id, vehicle_id, permit_type, reference_number,
				issuing_authority, start_date, end_date, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			p.ID, tenantID, p.VehicleID, p.PermitType, p.ReferenceNumber,
			p.IssuingAuthority, p.StartDate, p.EndDate, p.Status,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID loads a Permit scoped to the active tenant.
func (r *PermitRepository) GetByID(ctx context.Context, id string) (*domain.Permit, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var p domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + permitColumns + " FROM permits WHERE id = $1 AND deleted_at IS NULL"
		return r.db.GetContext(ctx, &p, query, id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("permit")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetForUpdate loads a Permit with a row lock, for use inside an existing
// WithTenantRLS transaction.
func (r *PermitRepository) GetForUpdate(ctx context.Context, id string) (*domain.Permit, error) {
	var p domain.Permit
	query := "SELECT " + permitColumns + " FROM permits WHERE id = $1 AND deleted_at IS NULL FOR UPDATE"
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("permit")
		}
		return nil, err
	}
	return &p, nil
}

// ActiveForVehicleAndType returns the active permit of permitType for a
// vehicle, if any.
func (r *PermitRepository) ActiveForVehicleAndType(ctx context.Context, vehicleID, permitType string) (*domain.Permit, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var p domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + permitColumns + ` FROM permits
			WHERE vehicle_id = $1 AND permit_type = $2 AND status = 'active' AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &p, query, vehicleID, permitType)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByVehicle returns every permit (any status/type) for a vehicle.
func (r *PermitRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]domain.Permit, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var permits []domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + permitColumns + ` FROM permits
			WHERE vehicle_id = $1 AND deleted_at IS NULL ORDER BY start_date DESC`
		return r.db.SelectContext(ctx, &permits, query, vehicleID)
	})
	if err != nil {
		return nil, err
	}
	return permits, nil
}

// ListByStatus returns every permit in one status for the active tenant,
// paginated — the backing query for the report projection's active/expired
// permit views (C11).
func (r *PermitRepository) ListByStatus(ctx context.Context, status domain.PermitStatus, page Pagination) ([]domain.Permit, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, errors.TenantUnbound()
	}

	var total int64
	var permits []domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total,
			"SELECT COUNT(*) FROM permits WHERE status = $1 AND deleted_at IS NULL", status); err != nil {
			return err
		}
		query := "SELECT " + permitColumns + ` FROM permits
			WHERE status = $1 AND deleted_at IS NULL
			ORDER BY end_date LIMIT $2 OFFSET $3`
		return r.db.SelectContext(ctx, &permits, query, status, page.Size(), page.Offset())
	})
	if err != nil {
		return nil, 0, err
	}
	return permits, total, nil
}

// ListByTypeAndDateRange returns permits of one type whose start_date falls
// within [from, to] — the backing query for the report projection's
// "registrations in a date range" view (C11; LATRA registrations are
// permit_type=latra_license, spec §3).
func (r *PermitRepository) ListByTypeAndDateRange(ctx context.Context, permitType string, from, to time.Time, page Pagination) ([]domain.Permit, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, errors.TenantUnbound()
	}

	var total int64
	var permits []domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM permits
			WHERE permit_type = $1 AND start_date BETWEEN $2 AND $3 AND deleted_at IS NULL`
		if err := r.db.GetContext(ctx, &total, countQuery, permitType, from, to); err != nil {
			return err
		}
		query := "SELECT " + permitColumns + ` FROM permits
			WHERE permit_type = $1 AND start_date BETWEEN $2 AND $3 AND deleted_at IS NULL
			ORDER BY start_date LIMIT $4 OFFSET $5`
		return r.db.SelectContext(ctx, &permits, query, permitType, from, to, page.Size(), page.Offset())
	})
	if err != nil {
		return nil, 0, err
	}
	return permits, total, nil
}

// ListExpiring returns active permits expiring within windowDays of asOf.
func (r *PermitRepository) ListExpiring(ctx context.Context, asOf sqlDate, windowDays int) ([]domain.Permit, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var permits []domain.Permit
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + permitColumns + ` FROM permits
			WHERE status = 'active' AND deleted_at IS NULL
			AND end_date <= $1 + ($2 || ' days')::interval
			ORDER BY end_date`
		return r.db.SelectContext(ctx, &permits, query, asOf, windowDays)
	})
	if err != nil {
		return nil, err
	}
	return permits, nil
}

// SaveTransition persists a state change for a Permit. As with
// PolicyRepository, the WHERE pins the expected prior status so a lost
// race surfaces as ErrInvalidTransition.
func (r *PermitRepository) SaveTransition(ctx context.Context, p *domain.Permit, fromStatus domain.PermitStatus) error {
	query := `
		UPDATE permits SET
			status = $3, activated_at = $4, cancelled_at = $5, cancelled_by = $6,
			cancellation_reason = $7, cancellation_note = $8, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, fromStatus, p.Status, p.ActivatedAt, p.CancelledAt, p.CancelledBy,
		p.CancellationReason, p.CancellationNote,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidTransition(string(fromStatus), string(p.Status))
	}
	return nil
}

// SaveEdit persists a field edit on a still-draft Permit.
func (r *PermitRepository) SaveEdit(ctx context.Context, p *domain.Permit) error {
	query := `
		UPDATE permits SET
			reference_number = $2, issuing_authority = $3, start_date = $4, end_date = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = 'draft' AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, p.ID, p.ReferenceNumber, p.IssuingAuthority, p.StartDate, p.EndDate)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Immutable("permit is not editable in its current status")
	}
	return nil
}
