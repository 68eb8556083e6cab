package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
)

// TenantRepository handles Tenant persistence. Unlike every other
// repository in this package, Tenant rows are not themselves tenant-scoped
// data — they are the isolation boundary — so these methods run against the
// base connection rather than through WithTenantRLS.
type TenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, slug, status, settings, created_at, updated_at, deleted_at`

type tenantRow struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Slug      string          `db:"slug"`
	Status    string          `db:"status"`
	Settings  json.RawMessage `db:"settings"`
	CreatedAt sql.NullTime    `db:"created_at"`
	UpdatedAt sql.NullTime    `db:"updated_at"`
	DeletedAt sql.NullTime    `db:"deleted_at"`
}

func (row *tenantRow) toDomain() (*domain.Tenant, error) {
	t := &domain.Tenant{
		ID:        row.ID,
		Name:      row.Name,
		Slug:      row.Slug,
		Status:    domain.TenantStatus(row.Status),
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.DeletedAt.Valid {
		t.DeletedAt = &row.DeletedAt.Time
	}
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &t.Settings); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SaveNew inserts a new Tenant with default settings.
func (r *TenantRepository) SaveNew(ctx context.Context, t *domain.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = domain.TenantStatusActive
	}
	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tenants (id, name, slug, status, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, t.ID, t.Name, t.Slug, t.Status, settingsJSON).
		Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID loads a Tenant by id, regardless of the active tenant on ctx.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var row tenantRow
	query := "SELECT " + tenantColumns + " FROM tenants WHERE id = $1 AND deleted_at IS NULL"
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("tenant")
		}
		return nil, err
	}
	return row.toDomain()
}

// GetBySlug loads a Tenant by its URL-safe slug — the lookup used by the
// tenant-resolution middleware ahead of any session/RLS context existing.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	var row tenantRow
	query := "SELECT " + tenantColumns + " FROM tenants WHERE slug = $1 AND deleted_at IS NULL"
	if err := r.db.GetContext(ctx, &row, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("tenant")
		}
		return nil, err
	}
	return row.toDomain()
}

// List returns every tenant, paginated — a super-admin-only operation.
func (r *TenantRepository) List(ctx context.Context, page Pagination) ([]*domain.Tenant, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tenants WHERE deleted_at IS NULL"); err != nil {
		return nil, 0, err
	}

	var rows []tenantRow
	query := "SELECT " + tenantColumns + ` FROM tenants WHERE deleted_at IS NULL
		ORDER BY name LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, page.Size(), page.Offset()); err != nil {
		return nil, 0, err
	}

	tenants := make([]*domain.Tenant, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	return tenants, total, nil
}

// SaveSettings persists an updated TenantSettings blob — a super-admin-only
// operation (e.g. setting expiry_reminder_days or required_permit_types).
func (r *TenantRepository) SaveSettings(ctx context.Context, id string, settings domain.TenantSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE tenants SET settings = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL",
		id, settingsJSON)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("tenant")
	}
	return nil
}

// SetStatus transitions a tenant between active and suspended.
func (r *TenantRepository) SetStatus(ctx context.Context, id string, status domain.TenantStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL",
		id, status)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("tenant")
	}
	return nil
}
