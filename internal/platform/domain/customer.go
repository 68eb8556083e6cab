package domain

import "time"

// CustomerKind distinguishes a person from a company as a vehicle owner.
type CustomerKind string

const (
	CustomerKindIndividual CustomerKind = "individual"
	CustomerKindCompany    CustomerKind = "company"
)

// Customer is a tenant-scoped vehicle owner. Soft-delete only; every change
// is preserved through the history layer (C8).
type Customer struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenant_id" db:"tenant_id"`
	Kind             CustomerKind `json:"kind" db:"kind"`
	DisplayName      string       `json:"display_name" db:"display_name"`
	PrimaryContact   string       `json:"primary_contact" db:"primary_contact"`
	NationalID       *string      `json:"national_id,omitempty" db:"national_id"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time   `json:"-" db:"deleted_at"`
}
