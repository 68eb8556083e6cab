package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// PolicyRepository handles Policy persistence (C3/C4). Activation is not a
// plain UPDATE: SaveTransition relies on uq_policies_one_active_per_vehicle
// (a partial unique index on (tenant_id, vehicle_id) WHERE status='active')
// to enforce I-POL-1 even under concurrent activation attempts — the
// lifecycle engine (internal/platform/lifecycle) wraps this call with its
// own serialization guard, but the database constraint is the final
// authority.
type PolicyRepository struct {
	db *database.DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `
	id, tenant_id, vehicle_id, policy_number, insurer_name, start_date, end_date,
	premium_amount, status, activated_at, cancelled_at, cancelled_by,
	cancellation_reason, cancellation_note, created_at, updated_at, deleted_at
`

// SaveNew inserts a new Policy in draft status.
func (r *PolicyRepository) SaveNew(ctx context.Context, p *domain.Policy) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = domain.PolicyStatusDraft
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO policies (
				id, tenant_id, vehicle_id, policy_number, insurer_name,
				start_date, end_date, premium_amount, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			p.ID, tenantID, p.VehicleID, p.PolicyNumber, p.InsurerName,
			p.StartDate, p.EndDate, p.PremiumAmount, p.Status,
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

// GetByID loads a Policy scoped to the active tenant. It takes no row lock;
// transitions read the row through GetForUpdate instead.
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var p domain.Policy
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + policyColumns + " FROM policies WHERE id = $1 AND deleted_at IS NULL"
		return r.db.GetContext(ctx, &p, query, id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("policy")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetForUpdate loads a Policy with a row lock, for use inside an existing
// WithTenantRLS transaction (the lifecycle engine's activate/cancel/expire
// transition).
func (r *PolicyRepository) GetForUpdate(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	query := "SELECT " + policyColumns + " FROM policies WHERE id = $1 AND deleted_at IS NULL FOR UPDATE"
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("policy")
		}
		return nil, err
	}
	return &p, nil
}

// ActiveForVehicle returns the active policy for a vehicle, if any —
// used by the lifecycle engine's overlap guard ahead of the database
// constraint, to produce a fast, friendly ErrOverlap before even attempting
// the UPDATE.
func (r *PolicyRepository) ActiveForVehicle(ctx context.Context, vehicleID string) (*domain.Policy, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var p domain.Policy
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + policyColumns + ` FROM policies
			WHERE vehicle_id = $1 AND status = 'active' AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &p, query, vehicleID)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByVehicle returns every policy (any status) for a vehicle, used by
// Vehicle.ActivePolicy and compliance computation.
func (r *PolicyRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]domain.Policy, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var policies []domain.Policy
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + policyColumns + ` FROM policies
			WHERE vehicle_id = $1 AND deleted_at IS NULL ORDER BY start_date DESC`
		return r.db.SelectContext(ctx, &policies, query, vehicleID)
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

// ListByStatus returns every policy in one status for the active tenant,
// paginated — the backing query for the report projection's active/expired
// policy views (C11).
func (r *PolicyRepository) ListByStatus(ctx context.Context, status domain.PolicyStatus, page Pagination) ([]domain.Policy, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, errors.TenantUnbound()
	}

	var total int64
	var policies []domain.Policy
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total,
			"SELECT COUNT(*) FROM policies WHERE status = $1 AND deleted_at IS NULL", status); err != nil {
			return err
		}
		query := "SELECT " + policyColumns + ` FROM policies
			WHERE status = $1 AND deleted_at IS NULL
			ORDER BY end_date LIMIT $2 OFFSET $3`
		return r.db.SelectContext(ctx, &policies, query, status, page.Size(), page.Offset())
	})
	if err != nil {
		return nil, 0, err
	}
	return policies, total, nil
}

// ListExpiring returns active policies whose end_date has passed, or is
// within windowDays, for the active tenant — used by the reconciler (C9).
func (r *PolicyRepository) ListExpiring(ctx context.Context, asOf sqlDate, windowDays int) ([]domain.Policy, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var policies []domain.Policy
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + policyColumns + ` FROM policies
			WHERE status = 'active' AND deleted_at IS NULL
			AND end_date <= $1 + ($2 || ' days')::interval
			ORDER BY end_date`
		return r.db.SelectContext(ctx, &policies, query, asOf, windowDays)
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

// SaveTransition persists a state change (request-activation/activate/
// cancel/expire; field edits go through SaveEdit) for
// a Policy. The WHERE clause pins both id and the expected prior status, so
// a concurrent transition that already moved the row loses the race and
// surfaces as ErrInvalidTransition rather than silently overwriting.
func (r *PolicyRepository) SaveTransition(ctx context.Context, p *domain.Policy, fromStatus domain.PolicyStatus) error {
	query := `
		UPDATE policies SET
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

// SaveEdit persists a field edit on a still-mutable (draft/pending_payment)
// Policy. Callers must have already checked p.IsImmutable() == false.
func (r *PolicyRepository) SaveEdit(ctx context.Context, p *domain.Policy) error {
	query := `
		UPDATE policies SET
			insurer_name = $2, start_date = $3, end_date = $4, premium_amount = $5,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'pending_payment') AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, p.ID, p.InsurerName, p.StartDate, p.EndDate, p.PremiumAmount)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Immutable("policy is not editable in its current status")
	}
	return nil
}

// sqlDate is a date-only value bound as a query parameter; kept as a
// type alias over string so callers pass "2006-01-02" without importing
// time into every call site.
type sqlDate = string
