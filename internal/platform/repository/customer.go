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

// CustomerRepository handles Customer persistence (C3/C4).
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// SaveNew inserts a new Customer for the active tenant.
func (r *CustomerRepository) SaveNew(ctx context.Context, c *domain.Customer) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO customers (id, tenant_id, kind, display_name, primary_contact, national_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			c.ID, tenantID, c.Kind, c.DisplayName, c.PrimaryContact, c.NationalID,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID loads a Customer scoped to the active tenant.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var c domain.Customer
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, kind, display_name, primary_contact, national_id,
			       created_at, updated_at, deleted_at
			FROM customers WHERE id = $1 AND deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &c, query, id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("customer")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a tenant-scoped, paginated slice of customers.
func (r *CustomerRepository) List(ctx context.Context, page Pagination) ([]*domain.Customer, int64, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, errors.TenantUnbound()
	}

	var total int64
	var customers []*domain.Customer
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM customers WHERE deleted_at IS NULL"); err != nil {
			return err
		}
		query := `
			SELECT id, tenant_id, kind, display_name, primary_contact, national_id,
			       created_at, updated_at, deleted_at
			FROM customers WHERE deleted_at IS NULL
			ORDER BY display_name
			LIMIT $1 OFFSET $2
		`
		return r.db.SelectContext(ctx, &customers, query, page.Size(), page.Offset())
	})
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// SoftDelete marks a customer as deleted without destroying its row.
func (r *CustomerRepository) SoftDelete(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			"UPDATE customers SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("customer")
		}
		return nil
	})
}

// OwnershipRepository handles Ownership persistence: prior rows are
// retained immutably, a transfer only closes out the current row and
// inserts a new one, in the same transaction.
type OwnershipRepository struct {
	db *database.DB
}

// NewOwnershipRepository creates a new ownership repository.
func NewOwnershipRepository(db *database.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

// CurrentOwner returns the ownership row with ToTS IS NULL for a vehicle, if
// any.
func (r *OwnershipRepository) CurrentOwner(ctx context.Context, vehicleID string) (*domain.Ownership, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var o domain.Ownership
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, vehicle_id, customer_id, from_ts, to_ts, created_at
			FROM ownerships WHERE vehicle_id = $1 AND to_ts IS NULL
		`
		return r.db.GetContext(ctx, &o, query, vehicleID)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Transfer closes the current ownership row (if any) and inserts a new one,
// atomically, so there is never more than one current row per vehicle.
func (r *OwnershipRepository) Transfer(ctx context.Context, vehicleID, customerID string) (*domain.Ownership, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	next := &domain.Ownership{ID: uuid.New().String(), TenantID: tenantID, VehicleID: vehicleID, CustomerID: customerID}

	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		if _, err := r.db.ExecContext(ctx,
			"UPDATE ownerships SET to_ts = NOW() WHERE vehicle_id = $1 AND to_ts IS NULL", vehicleID,
		); err != nil {
			return err
		}

		query := `
			INSERT INTO ownerships (id, tenant_id, vehicle_id, customer_id, from_ts)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING from_ts, created_at
		`
		return r.db.QueryRowxContext(ctx, query, next.ID, tenantID, vehicleID, customerID).
			Scan(&next.FromTS, &next.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}
