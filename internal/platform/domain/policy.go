package domain

import "time"

// PolicyStatus is a Policy's position in the shared lifecycle state machine
// (§4.5): draft → pending_payment → active → {cancelled | expired}.
type PolicyStatus string

const (
	PolicyStatusDraft           PolicyStatus = "draft"
	PolicyStatusPendingPayment  PolicyStatus = "pending_payment"
	PolicyStatusActive          PolicyStatus = "active"
	PolicyStatusCancelled       PolicyStatus = "cancelled"
	PolicyStatusExpired         PolicyStatus = "expired"
)

// PolicyCancellationReason is the controlled enum for why a Policy was
// cancelled (§6).
type PolicyCancellationReason string

const (
	PolicyCancelCustomerRequest PolicyCancellationReason = "customer_request"
	PolicyCancelNonPayment      PolicyCancellationReason = "non_payment"
	PolicyCancelVehicleSold     PolicyCancellationReason = "vehicle_sold"
	PolicyCancelDuplicate       PolicyCancellationReason = "duplicate"
	PolicyCancelDataError       PolicyCancellationReason = "data_error"
	PolicyCancelOther           PolicyCancellationReason = "other"
)

// ValidPolicyCancellationReasons enumerates the reasons accepted at cancel
// time; authorize against this, not a free-form string.
var ValidPolicyCancellationReasons = map[PolicyCancellationReason]bool{
	PolicyCancelCustomerRequest: true,
	PolicyCancelNonPayment:      true,
	PolicyCancelVehicleSold:     true,
	PolicyCancelDuplicate:       true,
	PolicyCancelDataError:       true,
	PolicyCancelOther:           true,
}

// Policy is a tenant-scoped, vehicle-scoped insurance coverage record (§3).
type Policy struct {
	ID                   string                    `json:"id" db:"id"`
	TenantID             string                    `json:"tenant_id" db:"tenant_id"`
	VehicleID            string                    `json:"vehicle_id" db:"vehicle_id"`
	PolicyNumber         string                    `json:"policy_number" db:"policy_number"`
	InsurerName          string                    `json:"insurer_name" db:"insurer_name"`
	StartDate            time.Time                 `json:"start_date" db:"start_date"`
	EndDate              time.Time                 `json:"end_date" db:"end_date"`
	PremiumAmount        float64                   `json:"premium_amount" db:"premium_amount"`
	Status               PolicyStatus              `json:"status" db:"status"`
	ActivatedAt          *time.Time                `json:"activated_at,omitempty" db:"activated_at"`
	CancelledAt          *time.Time                `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledBy          *string                   `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancellationReason   *PolicyCancellationReason `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancellationNote     *string                   `json:"cancellation_note,omitempty" db:"cancellation_note"`
	CreatedAt            time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at" db:"updated_at"`
	DeletedAt            *time.Time                `json:"-" db:"deleted_at"`
}

// IsImmutable reports whether the policy has left the editable part of its
// lifecycle (I-POL-2): once active, cancelled or expired, only the
// lifecycle-closure fields may ever change, and only via a transition.
func (p *Policy) IsImmutable() bool {
	switch p.Status {
	case PolicyStatusActive, PolicyStatusCancelled, PolicyStatusExpired:
		return true
	default:
		return false
	}
}

// IsFullyPaid reports whether verifiedPayments sum to at least the premium
// (I-POL-3). Callers pass only the verified subset; see Payment.IsVerified.
func (p *Policy) IsFullyPaid(verifiedPayments []Payment) bool {
	var total float64
	for _, pay := range verifiedPayments {
		if pay.PolicyID == p.ID && pay.IsVerified() {
			total += pay.Amount
		}
	}
	return total >= p.PremiumAmount
}

// CanActivate reports whether the policy is in a state activate() may be
// attempted from (draft or pending_payment); it does not check the other
// activation guards (payment, overlap, date window) which require
// transactional context and live in the lifecycle engine.
func (p *Policy) CanActivate() bool {
	return p.Status == PolicyStatusDraft || p.Status == PolicyStatusPendingPayment
}

// CanCancel reports whether cancel() may be attempted from the current
// status.
func (p *Policy) CanCancel() bool {
	switch p.Status {
	case PolicyStatusDraft, PolicyStatusPendingPayment, PolicyStatusActive:
		return true
	default:
		return false
	}
}

// CanExpire reports whether expire() may be attempted from the current
// status; the end_date-passed guard is evaluated by the lifecycle engine.
func (p *Policy) CanExpire() bool {
	return p.Status == PolicyStatusActive
}
