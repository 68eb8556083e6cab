package domain

import "time"

// Role is a platform user's authority level (§4.2).
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAgent      Role = "agent"
)

// UserStatus is the login-eligibility status of a User.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is a platform account. Invariant: is_super_admin ⇔ tenant_id IS NULL.
type User struct {
	ID               string     `json:"id" db:"id"`
	TenantID         *string    `json:"tenant_id,omitempty" db:"tenant_id"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	Role             Role       `json:"role" db:"role"`
	Status           UserStatus `json:"status" db:"status"`
	FailedLoginCount int        `json:"-" db:"failed_login_count"`
	LockedUntil      *time.Time `json:"-" db:"locked_until"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time `json:"-" db:"deleted_at"`
}

// IsSuperAdmin reports whether this user is the platform-owner role, which
// must never carry a tenant_id.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsLocked reports whether the account is currently inside its lockout
// window from repeated failed login attempts.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanAuthenticate reports whether the account is eligible to attempt login
// at all, independent of password correctness.
func (u *User) CanAuthenticate(now time.Time) bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil && !u.IsLocked(now)
}
