package domain

import "time"

// DynamicFieldEntityKind is the entity a DynamicFieldDefinition attaches to.
type DynamicFieldEntityKind string

const (
	DynamicFieldEntityCustomer DynamicFieldEntityKind = "customer"
	DynamicFieldEntityVehicle  DynamicFieldEntityKind = "vehicle"
	DynamicFieldEntityPolicy   DynamicFieldEntityKind = "policy"
	DynamicFieldEntityPermit   DynamicFieldEntityKind = "permit"
)

// DynamicFieldDataType is the typed storage kind for a field's values. The
// column name matches the corresponding typed column on DynamicFieldValue.
type DynamicFieldDataType string

const (
	DynamicFieldText   DynamicFieldDataType = "text"
	DynamicFieldNumber DynamicFieldDataType = "number"
	DynamicFieldDate   DynamicFieldDataType = "date"
	DynamicFieldBool   DynamicFieldDataType = "bool"
	DynamicFieldChoice DynamicFieldDataType = "choice"
)

// DynamicFieldDefinition describes a per-tenant custom field on a Customer,
// Vehicle, Policy or Permit (§3, §4.7). A definition with TenantID == nil is
// a global template defined by a super-admin, visible to every tenant.
type DynamicFieldDefinition struct {
	ID         string                 `json:"id" db:"id"`
	TenantID   *string                `json:"tenant_id,omitempty" db:"tenant_id"`
	EntityKind DynamicFieldEntityKind `json:"entity_kind" db:"entity_kind"`
	FieldKey   string                 `json:"field_key" db:"field_key"`
	Name       string                 `json:"name" db:"name"`
	DataType   DynamicFieldDataType   `json:"data_type" db:"value_type"`
	Choices    []string               `json:"choices,omitempty" db:"-"`
	Required   bool                   `json:"required" db:"required"`
	Order      int                    `json:"order" db:"display_order"`
	IsActive   bool                   `json:"is_active" db:"is_active"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// IsGlobalTemplate reports whether this definition is a platform-wide
// template rather than a tenant-specific field.
func (d *DynamicFieldDefinition) IsGlobalTemplate() bool {
	return d.TenantID == nil
}

// DynamicFieldValue is one typed value for one (definition, entity) pair.
// Exactly one of the typed fields is populated, matching Definition.DataType
// — this keeps values queryable/indexable instead of a free-form blob (§9).
type DynamicFieldValue struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	DefinitionID string     `json:"definition_id" db:"definition_id"`
	EntityKind   DynamicFieldEntityKind `json:"entity_kind" db:"entity_kind"`
	EntityID     string     `json:"entity_id" db:"entity_id"`
	ValueText    *string    `json:"value_text,omitempty" db:"value_text"`
	ValueNumber  *float64   `json:"value_number,omitempty" db:"value_number"`
	ValueDate    *time.Time `json:"value_date,omitempty" db:"value_date"`
	ValueBool    *bool      `json:"value_bool,omitempty" db:"value_bool"`
	ValueChoice  *string    `json:"value_choice,omitempty" db:"value_choice"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// AsWire returns the value in the single wire-appropriate representation for
// the given data type (§6: "Dynamic field value types on wire"), or nil if
// the value is unset for that type.
func (v *DynamicFieldValue) AsWire(dataType DynamicFieldDataType) interface{} {
	switch dataType {
	case DynamicFieldText:
		if v.ValueText == nil {
			return nil
		}
		return *v.ValueText
	case DynamicFieldNumber:
		if v.ValueNumber == nil {
			return nil
		}
		return *v.ValueNumber
	case DynamicFieldDate:
		if v.ValueDate == nil {
			return nil
		}
		return v.ValueDate.Format("2006-01-02")
	case DynamicFieldBool:
		if v.ValueBool == nil {
			return nil
		}
		return *v.ValueBool
	case DynamicFieldChoice:
		if v.ValueChoice == nil {
			return nil
		}
		return *v.ValueChoice
	default:
		return nil
	}
}
