package domain

import "time"

// Payment is a tenant-scoped, policy-scoped ledger entry. Only verified
// payments count toward I-POL-3; unverified partial payments are retained
// but do not activate a policy.
type Payment struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	PolicyID   string     `json:"policy_id" db:"policy_id"`
	Amount     float64    `json:"amount" db:"amount"`
	ReceivedAt time.Time  `json:"received_at" db:"received_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	VerifiedBy *string    `json:"verified_by,omitempty" db:"verified_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsVerified reports whether this payment counts toward a policy's premium.
func (p *Payment) IsVerified() bool {
	return p.VerifiedAt != nil
}
