package domain

import "time"

// PermitStatus mirrors Policy's lifecycle minus the pending_payment step:
// draft → active → {cancelled | expired}.
type PermitStatus string

const (
	PermitStatusDraft     PermitStatus = "draft"
	PermitStatusActive    PermitStatus = "active"
	PermitStatusCancelled PermitStatus = "cancelled"
	PermitStatusExpired   PermitStatus = "expired"
)

// PermitCancellationReason is the controlled enum for why a Permit was
// cancelled (§6). Distinct from PolicyCancellationReason: permits add
// expired_early and omit non_payment.
type PermitCancellationReason string

const (
	PermitCancelCustomerRequest PermitCancellationReason = "customer_request"
	PermitCancelVehicleSold     PermitCancellationReason = "vehicle_sold"
	PermitCancelDuplicate       PermitCancellationReason = "duplicate"
	PermitCancelDataError       PermitCancellationReason = "data_error"
	PermitCancelExpiredEarly    PermitCancellationReason = "expired_early"
	PermitCancelOther           PermitCancellationReason = "other"
)

// ValidPermitCancellationReasons enumerates the reasons accepted at cancel
// time.
var ValidPermitCancellationReasons = map[PermitCancellationReason]bool{
	PermitCancelCustomerRequest: true,
	PermitCancelVehicleSold:     true,
	PermitCancelDuplicate:       true,
	PermitCancelDataError:       true,
	PermitCancelExpiredEarly:    true,
	PermitCancelOther:           true,
}

// Well-known permit_type values. permit_type is data-driven (§3) — a tenant
// may introduce others — these constants exist only so the core need not
// special-case LATRA: "latra_license" is an ordinary permit_type, not a
// separate entity or code path.
const (
	PermitTypeLATRALicense          = "latra_license"
	PermitTypeRoutePermit           = "route_permit"
	PermitTypePSVBadge              = "psv_badge"
	PermitTypeInspectionCertificate = "inspection_certificate"
)

// Permit is a tenant-scoped, vehicle-scoped regulatory authorization (§3),
// e.g. a LATRA registration or a route permit. No schema branches on
// permit_type: LATRARecord is simply a Permit whose permit_type is
// "latra_license".
type Permit struct {
	ID                  string                    `json:"id" db:"id"`
	TenantID            string                    `json:"tenant_id" db:"tenant_id"`
	VehicleID           string                    `json:"vehicle_id" db:"vehicle_id"`
	PermitType          string                    `json:"permit_type" db:"permit_type"`
	ReferenceNumber     string                    `json:"reference_number" db:"reference_number"`
	IssuingAuthority    string                    `json:"issuing_authority" db:"issuing_authority"`
	StartDate           time.Time                 `json:"start_date" db:"start_date"`
	EndDate             time.Time                 `json:"end_date" db:"end_date"`
	Status              PermitStatus              `json:"status" db:"status"`
	ActivatedAt         *time.Time                `json:"activated_at,omitempty" db:"activated_at"`
	CancelledAt         *time.Time                `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledBy         *string                   `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancellationReason  *PermitCancellationReason `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancellationNote    *string                   `json:"cancellation_note,omitempty" db:"cancellation_note"`
	CreatedAt           time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at" db:"updated_at"`
	DeletedAt           *time.Time                `json:"-" db:"deleted_at"`
}

// IsImmutable mirrors Policy.IsImmutable for the permit lifecycle.
func (p *Permit) IsImmutable() bool {
	switch p.Status {
	case PermitStatusActive, PermitStatusCancelled, PermitStatusExpired:
		return true
	default:
		return false
	}
}

// CanActivate reports whether activate() may be attempted: permits go
// draft → active directly, with no pending_payment step.
func (p *Permit) CanActivate() bool {
	return p.Status == PermitStatusDraft
}

// CanCancel reports whether cancel() may be attempted from the current
// status.
func (p *Permit) CanCancel() bool {
	switch p.Status {
	case PermitStatusDraft, PermitStatusActive:
		return true
	default:
		return false
	}
}

// CanExpire reports whether expire() may be attempted from the current
// status.
func (p *Permit) CanExpire() bool {
	return p.Status == PermitStatusActive
}
