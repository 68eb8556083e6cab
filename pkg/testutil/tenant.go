package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// TestTenant represents a tenant row created for testing. Tenants share one
// database and one schema (RLS is the isolation boundary, not a per-tenant
// schema), so a TestTenant is just the row plus the values a repository call
// needs to bind onto the request context.
type TestTenant struct {
	ID   string
	Name string
	Slug string
}

// TenantManager manages test tenant rows in public.tenants.
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant inserts a tenant row for testing. Each test can have its own
// tenant so that the RLS policy is exercised by two genuinely distinct
// tenant_id values rather than asserted against a single fixture.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tenant, _ := tm.CreateTenant(ctx, "acme-logistics")
//	ctx = testutil.WithTestTenant(ctx, tenant)
//
//	// Now repository calls resolve ActiveTenant from this context.
//	vehicle, err := vehicleRepo.GetByID(ctx, vehicleID)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))

	_, err := tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (slug) DO NOTHING
	`, id, name, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	t := TestTenant{
		ID:   id,
		Name: name,
		Slug: slug,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// DropTenant deletes the tenant's row in public.tenants. Only its
// platform_user_lookup rows cascade with it: the business tables' tenant_id
// foreign keys carry no ON DELETE CASCADE, so the delete fails while the
// tenant still owns rows in them.
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, err := tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant record: %w", err)
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup drops every tenant created by this manager. Call this in TestMain
// or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		if _, err := tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID); err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.ID, t.Slug, "")
}

// WithTestTenantValues creates a context with custom tenant values.
// Useful for testing error cases or edge conditions.
func WithTestTenantValues(ctx context.Context, id, slug string) context.Context {
	return tenant.WithTenantContext(ctx, id, slug, "")
}

// TestTenantContext creates a context with a fake tenant for simple unit
// tests that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantContext(
		context.Background(),
		"00000000-0000-0000-0000-000000000001",
		"test-tenant",
		"",
	)
}
