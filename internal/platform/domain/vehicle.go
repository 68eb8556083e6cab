package domain

import "time"

// VehicleType is a data-driven classification, extensible by the tenant.
type VehicleType string

const (
	VehicleTypeMotorcycle   VehicleType = "motorcycle"
	VehicleTypeThreeWheeler VehicleType = "three_wheeler"
	VehicleTypeCar          VehicleType = "car"
)

// VehicleStatus is the operational status of a Vehicle, independent of its
// compliance status (which is derived, see compliance package).
type VehicleStatus string

const (
	VehicleStatusActive    VehicleStatus = "active"
	VehicleStatusSuspended VehicleStatus = "suspended"
	VehicleStatusRetired   VehicleStatus = "retired"
)

// Vehicle is the root compliance aggregate (§3). It owns no other aggregate
// but is referenced by Policy, Permit and Ownership rows.
type Vehicle struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	RegistrationPlate string        `json:"registration_plate" db:"registration_plate"`
	ChassisNumber     string        `json:"chassis_number" db:"chassis_number"`
	EngineNumber      string        `json:"engine_number" db:"engine_number"`
	VehicleType       VehicleType   `json:"vehicle_type" db:"vehicle_type"`
	UsageCategory     string        `json:"usage_category" db:"usage_category"`
	Status            VehicleStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time    `json:"-" db:"deleted_at"`
}

// ActivePolicy returns the active policy among the given candidates for this
// vehicle, or nil if none is active. Candidates must already be scoped to
// this vehicle by the caller (the repository layer, per C3); this is a pure
// predicate over an already-loaded slice, not a query.
func (v *Vehicle) ActivePolicy(candidates []Policy) *Policy {
	for i := range candidates {
		if candidates[i].VehicleID == v.ID && candidates[i].Status == PolicyStatusActive {
			return &candidates[i]
		}
	}
	return nil
}

// ActivePermitsByType returns, for each permit_type present among the given
// candidates, the single active permit of that type (I-PERM-1 guarantees at
// most one).
func (v *Vehicle) ActivePermitsByType(candidates []Permit) map[string]*Permit {
	result := make(map[string]*Permit)
	for i := range candidates {
		p := &candidates[i]
		if p.VehicleID != v.ID || p.Status != PermitStatusActive {
			continue
		}
		result[p.PermitType] = p
	}
	return result
}

// Ownership records who owns a vehicle over a time range. At most one row
// per vehicle has ToTS == nil (the current owner); prior rows are retained
// immutably when ownership transfers.
type Ownership struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	VehicleID  string     `json:"vehicle_id" db:"vehicle_id"`
	CustomerID string     `json:"customer_id" db:"customer_id"`
	FromTS     time.Time  `json:"from_ts" db:"from_ts"`
	ToTS       *time.Time `json:"to_ts,omitempty" db:"to_ts"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsCurrent reports whether this ownership row is the vehicle's present
// owner (no transfer has closed it out).
func (o *Ownership) IsCurrent() bool {
	return o.ToTS == nil
}
