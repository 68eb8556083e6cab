// Package compliance computes a vehicle's or a tenant's compliance posture
// at a point in time (C6, spec §4.6). It is read-only: every method loads
// already-persisted Policy/Permit rows through the repository layer and
// evaluates them against the shared active-window reconstruction (C5), it
// never mutates lifecycle state itself.
package compliance

import (
	"context"
	"sort"
	"time"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// Status is a vehicle's or a tenant-level aggregate's compliance posture.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusAtRisk       Status = "at_risk"
	StatusNonCompliant Status = "non_compliant"
)

// IssueKind names why a vehicle is not fully compliant.
type IssueKind string

const (
	IssueMissingInsurance IssueKind = "missing_insurance"
	IssueLapsedInsurance  IssueKind = "lapsed_insurance"
	IssueMissingPermit    IssueKind = "missing_permit"
	IssueLapsedPermit     IssueKind = "lapsed_permit"
)

// Issue is one reason a vehicle failed or is close to failing compliance.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	PermitType string    `json:"permit_type,omitempty"`
}

// RecordKind distinguishes the two record types that can appear in an
// ExpiringItem.
type RecordKind string

const (
	RecordPolicy RecordKind = "policy"
	RecordPermit RecordKind = "permit"
)

// ExpiringItem is a record that is active at as_of but within the tenant's
// risk window of its end_date.
type ExpiringItem struct {
	Kind       RecordKind `json:"kind"`
	ID         string     `json:"id"`
	PermitType string     `json:"permit_type,omitempty"`
	EndDate    time.Time  `json:"end_date"`
}

// VehicleReport is the result of compliance_status for one vehicle.
type VehicleReport struct {
	VehicleID string         `json:"vehicle_id"`
	AsOf      time.Time      `json:"as_of"`
	Status    Status         `json:"status"`
	Issues    []Issue        `json:"issues"`
	Expiring  []ExpiringItem `json:"expiring"`
}

// Summary is the result of tenant_compliance_summary.
type Summary struct {
	Total        int `json:"total"`
	Compliant    int `json:"compliant"`
	AtRisk       int `json:"at_risk"`
	NonCompliant int `json:"non_compliant"`
}

// Clock returns the current time; swappable in tests so "as_of=today"
// defaults are deterministic.
type Clock func() time.Time

// Service computes compliance_status and tenant_compliance_summary (C6).
type Service struct {
	vehicles *repository.VehicleRepository
	policies *repository.PolicyRepository
	permits  *repository.PermitRepository
	tenants  *repository.TenantRepository
	clock    Clock
}

// NewService builds a compliance Service. A nil clock defaults to time.Now.
func NewService(
	vehicles *repository.VehicleRepository,
	policies *repository.PolicyRepository,
	permits *repository.PermitRepository,
	tenants *repository.TenantRepository,
	clock Clock,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{vehicles: vehicles, policies: policies, permits: permits, tenants: tenants, clock: clock}
}

// VehicleStatus evaluates compliance_status(vehicle, as_of) per spec §4.6.
// A zero asOf means "now" (s.clock()).
func (s *Service) VehicleStatus(ctx context.Context, vehicleID string, asOf time.Time) (*VehicleReport, error) {
	if asOf.IsZero() {
		asOf = s.clock()
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	policies, err := s.policies.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	permits, err := s.permits.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	report := evaluateVehicle(vehicle.ID, asOf, t.ReminderWindow(), t.Settings.RequiredPermitTypes, policies, permits)
	return report, nil
}

// TenantSummary evaluates tenant_compliance_summary(as_of) per spec §4.6. A
// zero asOf means "now" (s.clock()). The naive per-vehicle loop here is
// adequate for the fleet sizes this platform targets; spec §4.6 notes that
// fleets beyond ~1000 vehicles should move this to an aggregate query, left
// as a documented scaling concern rather than implemented speculatively.
func (s *Service) TenantSummary(ctx context.Context, asOf time.Time) (*Summary, error) {
	if asOf.IsZero() {
		asOf = s.clock()
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	page := repository.Pagination{Page: 1, PageSize: 200}
	for {
		vehicles, _, err := s.vehicles.List(ctx, repository.VehicleFilter{}, page)
		if err != nil {
			return nil, err
		}
		for _, v := range vehicles {
			policies, err := s.policies.ListByVehicle(ctx, v.ID)
			if err != nil {
				return nil, err
			}
			permits, err := s.permits.ListByVehicle(ctx, v.ID)
			if err != nil {
				return nil, err
			}
			report := evaluateVehicle(v.ID, asOf, t.ReminderWindow(), t.Settings.RequiredPermitTypes, policies, permits)
			summary.Total++
			switch report.Status {
			case StatusCompliant:
				summary.Compliant++
			case StatusAtRisk:
				summary.AtRisk++
			case StatusNonCompliant:
				summary.NonCompliant++
			}
		}
		if len(vehicles) < page.Size() {
			break
		}
		page.Page++
	}
	return summary, nil
}

func evaluateVehicle(vehicleID string, asOf time.Time, riskWindowDays int, requiredPermitTypes []string, policies []domain.Policy, permits []domain.Permit) *VehicleReport {
	riskWindow := time.Duration(riskWindowDays) * 24 * time.Hour

	var issues []Issue
	var expiring []ExpiringItem

	insuranceActive, insuranceLapsed, expiringPolicy := activeAmong(policies, asOf, riskWindow)
	if expiringPolicy != nil {
		expiring = append(expiring, *expiringPolicy)
	}
	switch {
	case insuranceLapsed:
		issues = append(issues, Issue{Kind: IssueLapsedInsurance})
	case !insuranceActive:
		issues = append(issues, Issue{Kind: IssueMissingInsurance})
	}

	for _, permitType := range requiredPermitTypes {
		var candidates []domain.Permit
		for _, p := range permits {
			if p.PermitType == permitType {
				candidates = append(candidates, p)
			}
		}
		active, lapsed, expiringPermit := activePermitAmong(candidates, asOf, riskWindow)
		if expiringPermit != nil {
			expiring = append(expiring, *expiringPermit)
		}
		switch {
		case lapsed:
			issues = append(issues, Issue{Kind: IssueLapsedPermit, PermitType: permitType})
		case !active:
			issues = append(issues, Issue{Kind: IssueMissingPermit, PermitType: permitType})
		}
	}

	status := StatusCompliant
	switch {
	case len(issues) > 0:
		status = StatusNonCompliant
	case len(expiring) > 0:
		status = StatusAtRisk
	}

	sort.Slice(expiring, func(i, j int) bool { return expiring[i].EndDate.Before(expiring[j].EndDate) })

	return &VehicleReport{
		VehicleID: vehicleID,
		AsOf:      asOf,
		Status:    status,
		Issues:    issues,
		Expiring:  expiring,
	}
}

// activeAmong finds the policy (if any) whose active window covers asOf,
// per the spec's is_active_at contract — this is independent of the row's
// current status column, so a policy whose end_date has quietly passed but
// the background reconciler hasn't yet flipped to "expired" still surfaces
// as lapsed rather than silently compliant.
func activeAmong(policies []domain.Policy, asOf time.Time, riskWindow time.Duration) (active, lapsed bool, expiring *ExpiringItem) {
	for i := range policies {
		p := &policies[i]
		w := lifecycle.PolicyWindow(p.ActivatedAt, p.CancelledAt, &p.StartDate, &p.EndDate, string(p.Status))
		if !w.IsActiveAt(asOf) {
			continue
		}
		if p.EndDate.Before(asOf) {
			lapsed = true
			continue
		}
		active = true
		if p.EndDate.Sub(asOf) <= riskWindow {
			expiring = &ExpiringItem{Kind: RecordPolicy, ID: p.ID, EndDate: p.EndDate}
		}
		return active, false, expiring
	}
	return active, lapsed, expiring
}

func activePermitAmong(permits []domain.Permit, asOf time.Time, riskWindow time.Duration) (active, lapsed bool, expiring *ExpiringItem) {
	for i := range permits {
		p := &permits[i]
		w := lifecycle.PermitWindow(p.ActivatedAt, p.CancelledAt, &p.StartDate, &p.EndDate, string(p.Status))
		if !w.IsActiveAt(asOf) {
			continue
		}
		if p.EndDate.Before(asOf) {
			lapsed = true
			continue
		}
		active = true
		if p.EndDate.Sub(asOf) <= riskWindow {
			expiring = &ExpiringItem{Kind: RecordPermit, ID: p.ID, PermitType: p.PermitType, EndDate: p.EndDate}
		}
		return active, false, expiring
	}
	return active, lapsed, expiring
}
