// Package dynamicfields is the definition CRUD and typed-value validation
// service for per-tenant custom fields (C7, spec §4.7). Definition CRUD is
// admin-only; value writes are validated against the owning definition's
// data_type before ever reaching the repository layer.
package dynamicfields

import (
	"context"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
)

// maxTextLength is the spec §4.7 bound on a text-typed value.
const maxTextLength = 1024

// Service is the dynamic-fields CRUD and validation entry point.
type Service struct {
	repo *repository.DynamicFieldRepository
}

// NewService builds a dynamicfields Service.
func NewService(repo *repository.DynamicFieldRepository) *Service {
	return &Service{repo: repo}
}

// canManageDefinitions reports whether role may create, edit or deactivate
// definitions (spec §4.7: "Definition CRUD restricted to admin"). super_admin
// is also allowed, since only that role may author the TenantID==nil global
// templates in the first place.
func canManageDefinitions(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleSuperAdmin
}

// DefinitionInput is the validated shape for creating a definition.
type DefinitionInput struct {
	EntityKind domain.DynamicFieldEntityKind `validate:"required,oneof=customer vehicle policy permit"`
	FieldKey   string                        `validate:"required,max=64"`
	Name       string                        `validate:"required,max=128"`
	DataType   domain.DynamicFieldDataType   `validate:"required,oneof=text number date bool choice"`
	Choices    []string
	Required   bool
	Order      int
}

// CreateDefinition creates a new field definition. tenantID is nil for a
// super_admin-authored global template (domain.DynamicFieldDefinition.
// IsGlobalTemplate); a tenant-scoped definition must carry the active
// tenant's id.
func (s *Service) CreateDefinition(ctx context.Context, actor lifecycle.Actor, tenantID *string, in DefinitionInput) (*domain.DynamicFieldDefinition, error) {
	if !canManageDefinitions(actor.Role) {
		return nil, errors.Forbidden()
	}
	if tenantID == nil && actor.Role != domain.RoleSuperAdmin {
		return nil, errors.Forbidden()
	}
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}
	if in.DataType == domain.DynamicFieldChoice && len(in.Choices) == 0 {
		return nil, errors.Validation(map[string]string{"choices": "required when data_type is choice"})
	}

	def := &domain.DynamicFieldDefinition{
		TenantID:   tenantID,
		EntityKind: in.EntityKind,
		FieldKey:   in.FieldKey,
		Name:       in.Name,
		DataType:   in.DataType,
		Choices:    in.Choices,
		Required:   in.Required,
		Order:      in.Order,
		IsActive:   true,
	}
	if err := s.repo.SaveDefinition(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// ListDefinitions returns every active definition visible to the active
// tenant for an entity kind (its own plus global templates).
func (s *Service) ListDefinitions(ctx context.Context, entityKind domain.DynamicFieldEntityKind) ([]domain.DynamicFieldDefinition, error) {
	return s.repo.ListDefinitions(ctx, entityKind)
}

// DeactivateDefinition hides a definition from new records while retaining
// its existing values (spec §4.7, §9: deactivation does not disturb data
// already written under it).
func (s *Service) DeactivateDefinition(ctx context.Context, actor lifecycle.Actor, id string) error {
	if !canManageDefinitions(actor.Role) {
		return errors.Forbidden()
	}
	return s.repo.Deactivate(ctx, id)
}

// SetValue validates raw against def's data_type (spec §4.7) and persists it
// as the typed value for (def, entityID). raw's expected Go type per
// data_type: text → string, number → float64, date → time.Time or a
// "2006-01-02" string, bool → bool, choice → string (checked against
// def.Choices).
func (s *Service) SetValue(ctx context.Context, def *domain.DynamicFieldDefinition, entityKind domain.DynamicFieldEntityKind, entityID string, raw interface{}) error {
	v, err := buildValue(def, entityKind, entityID, raw)
	if err != nil {
		return err
	}
	return s.repo.SaveValue(ctx, v)
}

// ListValues returns every recorded value for one entity.
func (s *Service) ListValues(ctx context.Context, entityID string) ([]domain.DynamicFieldValue, error) {
	return s.repo.ListValues(ctx, entityID)
}

func buildValue(def *domain.DynamicFieldDefinition, entityKind domain.DynamicFieldEntityKind, entityID string, raw interface{}) (*domain.DynamicFieldValue, error) {
	v := &domain.DynamicFieldValue{
		TenantID:     "", // filled in by the repository from ctx's active tenant
		DefinitionID: def.ID,
		EntityKind:   entityKind,
		EntityID:     entityID,
	}

	if raw == nil {
		if def.Required && def.IsActive {
			return nil, errors.Validation(map[string]string{def.FieldKey: "this field is required"})
		}
		return v, nil
	}

	switch def.DataType {
	case domain.DynamicFieldText:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be a string"})
		}
		if len(s) > maxTextLength {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be at most 1024 characters"})
		}
		v.ValueText = &s

	case domain.DynamicFieldNumber:
		n, ok := raw.(float64)
		if !ok {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be a number"})
		}
		v.ValueNumber = &n

	case domain.DynamicFieldDate:
		d, err := parseDate(raw)
		if err != nil {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be an ISO-8601 date"})
		}
		v.ValueDate = &d

	case domain.DynamicFieldBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be true or false"})
		}
		v.ValueBool = &b

	case domain.DynamicFieldChoice:
		c, ok := raw.(string)
		if !ok || !isValidChoice(def.Choices, c) {
			return nil, errors.Validation(map[string]string{def.FieldKey: "must be one of the definition's choices"})
		}
		v.ValueChoice = &c

	default:
		return nil, errors.Validation(map[string]string{def.FieldKey: "unknown data type"})
	}

	return v, nil
}

func parseDate(raw interface{}) (time.Time, error) {
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse("2006-01-02", t)
	default:
		return time.Time{}, errors.Validation(map[string]string{"value": "must be an ISO-8601 date"})
	}
}

func isValidChoice(choices []string, c string) bool {
	for _, choice := range choices {
		if choice == c {
			return true
		}
	}
	return false
}
