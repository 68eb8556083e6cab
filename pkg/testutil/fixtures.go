package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserFixture represents test platform user data (C2)
type UserFixture struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerFixture represents test customer data (C4)
type CustomerFixture struct {
	ID         string
	TenantID   string
	FullName   string
	NationalID string
	Phone      string
	Email      string
	CreatedAt  time.Time
}

// VehicleFixture represents test vehicle data (C4)
type VehicleFixture struct {
	ID          string
	TenantID    string
	VIN         string
	PlateNumber string
	Make        string
	Model       string
	Year        int
	CreatedAt   time.Time
}

// PolicyFixture represents test Policy data (C4/C5)
type PolicyFixture struct {
	ID            string
	TenantID      string
	VehicleID     string
	InsurerName   string
	PolicyNumber  string
	Status        string
	StartsAt      *time.Time
	EndsAt        *time.Time
	PremiumAmount float64
	AmountPaid    float64
	CreatedAt     time.Time
}

// PermitFixture represents test Permit data (C4/C5), covering both LATRA
// registrations and regulatory permits — they differ only in permit_type.
type PermitFixture struct {
	ID               string
	TenantID         string
	VehicleID        string
	PermitType       string
	IssuingAuthority string
	Status           string
	StartsAt         *time.Time
	EndsAt           *time.Time
	CreatedAt        time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// User creates a platform user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("user%d@test.fleetcompliance.io", seq),
		PasswordHash: string(hash),
		Role:         "agent",
		Status:       "active",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithRole sets the user's role
func WithRole(role string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Role = role
	}
}

// WithTenantID sets the user's tenant ID
func WithTenantID(tenantID string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.TenantID = tenantID
	}
}

// WithStatus sets the user status
func WithStatus(status string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Status = status
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}

// SuperAdmin creates a super_admin user fixture (tenant_id is always nil)
func (f *FixtureFactory) SuperAdmin(opts ...func(*UserFixture)) UserFixture {
	u := f.User(append([]func(*UserFixture){WithRole("super_admin")}, opts...)...)
	u.TenantID = ""
	return u
}

// Customer creates a customer fixture with defaults
func (f *FixtureFactory) Customer(opts ...func(*CustomerFixture)) CustomerFixture {
	seq := f.nextSeq()

	c := CustomerFixture{
		ID:         uuid.New().String(),
		FullName:   fmt.Sprintf("Test Customer %d", seq),
		NationalID: fmt.Sprintf("NID-%06d", seq),
		Phone:      fmt.Sprintf("+255700%06d", seq),
		Email:      fmt.Sprintf("customer%d@test.fleetcompliance.io", seq),
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// WithCustomerName sets the customer's full name
func WithCustomerName(name string) func(*CustomerFixture) {
	return func(c *CustomerFixture) {
		c.FullName = name
	}
}

// Vehicle creates a vehicle fixture with defaults
func (f *FixtureFactory) Vehicle(opts ...func(*VehicleFixture)) VehicleFixture {
	seq := f.nextSeq()

	v := VehicleFixture{
		ID:          uuid.New().String(),
		VIN:         fmt.Sprintf("VIN%014d", seq),
		PlateNumber: fmt.Sprintf("T%03d ABC", seq),
		Make:        "Toyota",
		Model:       "Hilux",
		Year:        2020,
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&v)
	}

	return v
}

// WithVIN sets the vehicle VIN
func WithVIN(vin string) func(*VehicleFixture) {
	return func(v *VehicleFixture) {
		v.VIN = vin
	}
}

// WithPlateNumber sets the vehicle plate number
func WithPlateNumber(plate string) func(*VehicleFixture) {
	return func(v *VehicleFixture) {
		v.PlateNumber = plate
	}
}

// Policy creates a draft Policy fixture with defaults
func (f *FixtureFactory) Policy(vehicleID string, opts ...func(*PolicyFixture)) PolicyFixture {
	seq := f.nextSeq()

	p := PolicyFixture{
		ID:            uuid.New().String(),
		VehicleID:     vehicleID,
		InsurerName:   "Jubilee Insurance",
		PolicyNumber:  fmt.Sprintf("POL-%06d", seq),
		Status:        "draft",
		PremiumAmount: 500000,
		CreatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithPolicyStatus sets the policy status
func WithPolicyStatus(status string) func(*PolicyFixture) {
	return func(p *PolicyFixture) {
		p.Status = status
	}
}

// WithPolicyWindow sets the policy's active_window bounds
func WithPolicyWindow(starts, ends time.Time) func(*PolicyFixture) {
	return func(p *PolicyFixture) {
		p.StartsAt = &starts
		p.EndsAt = &ends
	}
}

// WithAmountPaid sets the amount already paid toward the premium
func WithAmountPaid(amount float64) func(*PolicyFixture) {
	return func(p *PolicyFixture) {
		p.AmountPaid = amount
	}
}

// Permit creates a draft Permit fixture with defaults. permitType is one of
// "latra_license" or a regulatory permit type such as "weighbridge",
// "route_authorization".
func (f *FixtureFactory) Permit(vehicleID, permitType string, opts ...func(*PermitFixture)) PermitFixture {
	p := PermitFixture{
		ID:               uuid.New().String(),
		VehicleID:        vehicleID,
		PermitType:       permitType,
		IssuingAuthority: "LATRA",
		Status:           "draft",
		CreatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithPermitStatus sets the permit status
func WithPermitStatus(status string) func(*PermitFixture) {
	return func(p *PermitFixture) {
		p.Status = status
	}
}

// WithPermitWindow sets the permit's active_window bounds
func WithPermitWindow(starts, ends time.Time) func(*PermitFixture) {
	return func(p *PermitFixture) {
		p.StartsAt = &starts
		p.EndsAt = &ends
	}
}

// DefaultTestUsers returns a set of standard test users spanning the role
// matrix (§4.2): admin, manager, agent, plus a disabled account for lockout
// tests.
func DefaultTestUsers(factory *FixtureFactory) []UserFixture {
	return []UserFixture{
		factory.User(WithEmail("admin@acme-logistics.test"), WithRole("admin")),
		factory.User(WithEmail("manager@acme-logistics.test"), WithRole("manager")),
		factory.User(WithEmail("agent@acme-logistics.test"), WithRole("agent")),
		factory.User(WithEmail("disabled@acme-logistics.test"), WithRole("agent"), WithStatus("disabled")),
	}
}
