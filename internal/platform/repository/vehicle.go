// Package repository is the sole gateway to business-entity storage (C3,
// §4.3). Tenant-owned queries resolve ActiveTenant from ctx and run under
// database.WithTenantRLS, so tenant_id is always composed by the
// database's row-level-security engine, never trusted from the caller.
// The exceptions: TenantRepository uses the base connection, SessionRepository
// takes tenantID as an argument, the *Tx/GetForUpdate/SaveTransition/SaveEdit
// and audit/history Append methods join the transaction already open on ctx,
// and UserRepository's super_admin and login-time paths run outside RLS.
// Loading an entity whose tenant differs surfaces as ErrNotFound, never
// ErrForbidden, so cross-tenant IDs cannot be enumerated.
package repository

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"

	"context"
)

// VehicleFilter narrows VehicleRepository.List. Zero values are "no filter".
type VehicleFilter struct {
	Status      domain.VehicleStatus
	VehicleType domain.VehicleType
}

// Pagination is shared across every List method in this package (§6:
// page, page_size ≤ 200).
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the SQL OFFSET for this page (1-indexed Page).
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Size()
}

// Size returns the bounded page size, clamped to [1, 200] per §6.
func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return 50
	case p.PageSize > 200:
		return 200
	default:
		return p.PageSize
	}
}

// VehicleRepository handles Vehicle persistence (C3/C4).
type VehicleRepository struct {
	db *database.DB
}

// NewVehicleRepository creates a new vehicle repository.
func NewVehicleRepository(db *database.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// SaveNew inserts a new Vehicle for the active tenant.
func (r *VehicleRepository) SaveNew(ctx context.Context, v *domain.Vehicle) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Status == "" {
		v.Status = domain.VehicleStatusActive
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO vehicles (
				id, tenant_id, registration_plate, chassis_number, engine_number,
				vehicle_type, usage_category, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			v.ID, tenantID, v.RegistrationPlate, v.ChassisNumber, v.EngineNumber,
			v.VehicleType, v.UsageCategory, v.Status,
		).Scan(&v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID loads a Vehicle scoped to the active tenant.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var v domain.Vehicle
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, registration_plate, chassis_number, engine_number,
			       vehicle_type, usage_category, status, created_at, updated_at, deleted_at
			FROM vehicles
			WHERE id = $1 AND deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &v, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("vehicle")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByPlate loads a Vehicle by its tenant-unique registration plate.
func (r *VehicleRepository) GetByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var v domain.Vehicle
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, registration_plate, chassis_number, engine_number,
			       vehicle_type, usage_category, status, created_at, updated_at, deleted_at
			FROM vehicles
			WHERE registration_plate = $1 AND deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &v, query, plate)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("vehicle")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns a tenant-scoped, filtered, paginated slice of vehicles plus
// the total matching count.
func (r *VehicleRepository) List(ctx context.Context, filter VehicleFilter, page Pagination) ([]*domain.Vehicle, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, errors.TenantUnbound()
	}

	var total int64
	var vehicles []*domain.Vehicle

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		where := "WHERE deleted_at IS NULL"
		args := []interface{}{}
		argN := 0

		if filter.Status != "" {
			where += sqlParam("status", &argN)
			args = append(args, filter.Status)
		}
		if filter.VehicleType != "" {
			where += sqlParam("vehicle_type", &argN)
			args = append(args, filter.VehicleType)
		}

		if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM vehicles "+where, args...); err != nil {
			return err
		}

		limitArg, offsetArg := argN+1, argN+2
		args = append(args, page.Size(), page.Offset())
		query := `
			SELECT id, tenant_id, registration_plate, chassis_number, engine_number,
			       vehicle_type, usage_category, status, created_at, updated_at, deleted_at
			FROM vehicles ` + where + `
			ORDER BY registration_plate
			LIMIT $` + itoa(limitArg) + ` OFFSET $` + itoa(offsetArg)

		return r.db.SelectContext(ctx, &vehicles, query, args...)
	})
	if err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// SoftDelete marks a vehicle as deleted without destroying its row.
func (r *VehicleRepository) SoftDelete(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			"UPDATE vehicles SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("vehicle")
		}
		return nil
	})
}
