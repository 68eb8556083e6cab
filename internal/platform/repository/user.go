package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// UserRepository handles platform_users persistence (C2). super_admin rows
// carry a NULL tenant_id and are visible regardless of the active tenant,
// mirroring the RLS policy on platform_users itself.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, tenant_id, email, password_hash, role, status,
	failed_login_count, locked_until, created_at, updated_at, deleted_at
`

// SaveNew inserts a new User for the active tenant (or, for a super_admin,
// with no tenant at all — callers pass a nil TenantID and must not go
// through WithTenantRLS for that path). For a tenant-scoped user it also
// writes the platform_user_lookup row GetByEmail depends on to resolve a
// tenant from an email without scanning every tenant; tenantSlug is
// ignored (and may be empty) for a super_admin.
func (r *UserRepository) SaveNew(ctx context.Context, u *domain.User, tenantSlug string) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = domain.UserStatusActive
	}

	insert := func(ctx context.Context) error {
		query := `
			INSERT INTO platform_users (id, tenant_id, email, password_hash, role, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query, u.ID, u.TenantID, u.Email, u.PasswordHash, u.Role, u.Status).
			Scan(&u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	}

	if u.TenantID == nil {
		return insert(ctx)
	}

	return r.db.WithTenantRLS(ctx, *u.TenantID, func(ctx context.Context) error {
		if err := insert(ctx); err != nil {
			return err
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO platform_user_lookup (email, user_id, tenant_id, tenant_slug)
			VALUES ($1, $2, $3, $4)
		`, u.Email, u.ID, *u.TenantID, tenantSlug)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByEmail loads a User by its system-wide-unique email, via the
// platform_user_lookup table when tenant-scoped (avoids scanning every
// tenant at login) and directly from platform_users for a super_admin,
// who has no lookup row.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var lookup struct {
		UserID   string `db:"user_id"`
		TenantID string `db:"tenant_id"`
	}
	err := r.db.GetContext(ctx, &lookup,
		"SELECT user_id, tenant_id FROM platform_user_lookup WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return r.getSuperAdminByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	var u domain.User
	err = r.db.WithTenantRLS(ctx, lookup.TenantID, func(ctx context.Context) error {
		query := "SELECT " + userColumns + " FROM platform_users WHERE id = $1 AND deleted_at IS NULL"
		return r.db.GetContext(ctx, &u, query, lookup.UserID)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// getSuperAdminByEmail looks up a tenant-less super_admin row directly; no
// platform_user_lookup entry exists for these since they are not tied to a
// tenant_slug resolution.
func (r *UserRepository) getSuperAdminByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	query := "SELECT " + userColumns + " FROM platform_users WHERE email = $1 AND tenant_id IS NULL AND deleted_at IS NULL"
	err := r.db.GetContext(ctx, &u, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID loads a User scoped to the active tenant.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var u domain.User
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + userColumns + " FROM platform_users WHERE id = $1 AND deleted_at IS NULL"
		return r.db.GetContext(ctx, &u, query, id)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByRoles returns every active user in the active tenant whose role is
// one of roles — used by the cancellation notification fan-out (§4.10:
// "all admins+managers in tenant").
func (r *UserRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	roleStrs := make([]string, len(roles))
	for i, role := range roles {
		roleStrs[i] = string(role)
	}

	var users []domain.User
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := "SELECT " + userColumns + ` FROM platform_users
			WHERE role = ANY($1) AND status = 'active' AND deleted_at IS NULL`
		return r.db.SelectContext(ctx, &users, query, pq.Array(roleStrs))
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// RecordFailedLogin increments the failed_login_count and, once it reaches
// maxAttempts, sets locked_until to lockUntil. Runs outside WithTenantRLS
// since authn.Service.Login runs before a tenant is resolved onto the request.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockUntil time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE platform_users SET
			failed_login_count = failed_login_count + 1,
			locked_until = CASE WHEN failed_login_count + 1 >= $2 THEN $3 ELSE locked_until END
		WHERE id = $1
	`, userID, maxAttempts, lockUntil)
	return err
}

// ResetFailedLogins clears the lockout counters after a successful login.
func (r *UserRepository) ResetFailedLogins(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE platform_users SET failed_login_count = 0, locked_until = NULL WHERE id = $1", userID)
	return err
}
