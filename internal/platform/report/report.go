// Package report is the query/report projection layer (C11, spec §4.11): a
// thin, read-only facade over C3's repositories and C6's compliance service.
// Every result here is already tenant-filtered by the repository layer — this
// package adds no isolation logic of its own, only shaping the data for a
// dashboard or export. Rendering to CSV/PDF is out of scope.
package report

import (
	"context"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/compliance"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
)

// Service is the report projection entry point.
type Service struct {
	policies   *repository.PolicyRepository
	permits    *repository.PermitRepository
	compliance *compliance.Service
}

// NewService builds a report Service.
func NewService(policies *repository.PolicyRepository, permits *repository.PermitRepository, complianceSvc *compliance.Service) *Service {
	return &Service{policies: policies, permits: permits, compliance: complianceSvc}
}

// ActivePolicies returns the tenant's currently active policies, paginated.
func (s *Service) ActivePolicies(ctx context.Context, page repository.Pagination) ([]domain.Policy, int64, error) {
	return s.policies.ListByStatus(ctx, domain.PolicyStatusActive, page)
}

// ExpiredPolicies returns the tenant's expired policies, paginated.
func (s *Service) ExpiredPolicies(ctx context.Context, page repository.Pagination) ([]domain.Policy, int64, error) {
	return s.policies.ListByStatus(ctx, domain.PolicyStatusExpired, page)
}

// ActivePermits returns the tenant's currently active permits, paginated.
func (s *Service) ActivePermits(ctx context.Context, page repository.Pagination) ([]domain.Permit, int64, error) {
	return s.permits.ListByStatus(ctx, domain.PermitStatusActive, page)
}

// ExpiredPermits returns the tenant's expired permits, paginated.
func (s *Service) ExpiredPermits(ctx context.Context, page repository.Pagination) ([]domain.Permit, int64, error) {
	return s.permits.ListByStatus(ctx, domain.PermitStatusExpired, page)
}

// RegistrationsInRange returns LATRA registrations (permit_type=
// latra_license) whose start_date falls within [from, to], paginated.
func (s *Service) RegistrationsInRange(ctx context.Context, from, to time.Time, page repository.Pagination) ([]domain.Permit, int64, error) {
	return s.permits.ListByTypeAndDateRange(ctx, domain.PermitTypeLATRALicense, from, to, page)
}

// VehicleSnapshot returns the per-vehicle compliance snapshot (C6) as of now.
func (s *Service) VehicleSnapshot(ctx context.Context, vehicleID string) (*compliance.VehicleReport, error) {
	return s.compliance.VehicleStatus(ctx, vehicleID, time.Time{})
}
