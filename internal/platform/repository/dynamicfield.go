package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// DynamicFieldRepository handles DynamicFieldDefinition and
// DynamicFieldValue persistence (C7).
type DynamicFieldRepository struct {
	db *database.DB
}

// NewDynamicFieldRepository creates a new dynamic field repository.
func NewDynamicFieldRepository(db *database.DB) *DynamicFieldRepository {
	return &DynamicFieldRepository{db: db}
}

// SaveDefinition inserts a new field definition. A nil TenantID on the
// domain value is a global template, written without entering
// WithTenantRLS since it is not tenant-owned data — callers must have
// already checked the actor is a super-admin for that path.
func (r *DynamicFieldRepository) SaveDefinition(ctx context.Context, d *domain.DynamicFieldDefinition) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	choicesJSON, err := json.Marshal(d.Choices)
	if err != nil {
		return err
	}

	insert := func(ctx context.Context) error {
		query := `
			INSERT INTO dynamic_field_definitions (
				id, tenant_id, entity_kind, field_key, name, value_type, choices, required, display_order, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			d.ID, d.TenantID, d.EntityKind, d.FieldKey, d.Name, d.DataType, choicesJSON, d.Required, d.Order, d.IsActive,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	}

	if d.IsGlobalTemplate() {
		return insert(ctx)
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	return r.db.WithTenantRLS(ctx, tenantID, insert)
}

// ListDefinitions returns every active definition visible to the active
// tenant for an entity kind: the tenant's own definitions plus global
// templates (TenantID IS NULL).
func (r *DynamicFieldRepository) ListDefinitions(ctx context.Context, entityKind domain.DynamicFieldEntityKind) ([]domain.DynamicFieldDefinition, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	type row struct {
		domain.DynamicFieldDefinition
		ChoicesJSON json.RawMessage `db:"choices"`
	}
	var rows []row
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, entity_kind, field_key, name, value_type, choices, required, display_order, is_active,
			       created_at, updated_at
			FROM dynamic_field_definitions
			WHERE entity_kind = $1 AND is_active = true
			AND (tenant_id = $2 OR tenant_id IS NULL)
			ORDER BY display_order
		`
		return r.db.SelectContext(ctx, &rows, query, entityKind, tenantID)
	})
	if err != nil {
		return nil, err
	}

	defs := make([]domain.DynamicFieldDefinition, 0, len(rows))
	for _, rw := range rows {
		d := rw.DynamicFieldDefinition
		if len(rw.ChoicesJSON) > 0 {
			if err := json.Unmarshal(rw.ChoicesJSON, &d.Choices); err != nil {
				return nil, err
			}
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// Deactivate flips is_active to false; existing values are retained (§9).
func (r *DynamicFieldRepository) Deactivate(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		result, execErr := r.db.ExecContext(ctx,
			"UPDATE dynamic_field_definitions SET is_active = false, updated_at = NOW() WHERE id = $1", id)
		if execErr != nil {
			return execErr
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("dynamic field definition")
		}
		return nil
	})
}

// SaveValue upserts one typed value for a (definition, entity) pair.
func (r *DynamicFieldRepository) SaveValue(ctx context.Context, v *domain.DynamicFieldValue) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO dynamic_field_values (
				id, tenant_id, definition_id, entity_kind, entity_id,
				value_text, value_number, value_date, value_bool, value_choice
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (tenant_id, definition_id, entity_id) DO UPDATE SET
				value_text = $6, value_number = $7, value_date = $8, value_bool = $9, value_choice = $10,
				updated_at = NOW()
		`
		_, execErr := r.db.ExecContext(ctx, query,
			v.ID, tenantID, v.DefinitionID, v.EntityKind, v.EntityID,
			v.ValueText, v.ValueNumber, v.ValueDate, v.ValueBool, v.ValueChoice,
		)
		if execErr != nil {
			if appErr := database.MapPQError(execErr); appErr != nil {
				return appErr
			}
			return execErr
		}
		return nil
	})
}

// ListValues returns every dynamic field value recorded for one entity.
func (r *DynamicFieldRepository) ListValues(ctx context.Context, entityID string) ([]domain.DynamicFieldValue, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var values []domain.DynamicFieldValue
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, definition_id, entity_kind, entity_id,
			       value_text, value_number, value_date, value_bool, value_choice, created_at, updated_at
			FROM dynamic_field_values WHERE entity_id = $1
		`
		return r.db.SelectContext(ctx, &values, query, entityID)
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}
