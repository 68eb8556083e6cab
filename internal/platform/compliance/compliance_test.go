package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetcompliance/platform/internal/platform/domain"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestEvaluateVehicle_Compliant(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(asOf.AddDate(0, -1, 0)),
		EndDate:     asOf.AddDate(1, 0, 0),
	}}
	permits := []domain.Permit{{
		ID: "permit-1", PermitType: domain.PermitTypeLATRALicense, Status: domain.PermitStatusActive,
		ActivatedAt: ptrTime(asOf.AddDate(0, -1, 0)),
		EndDate:     asOf.AddDate(1, 0, 0),
	}}

	report := evaluateVehicle("veh-1", asOf, 30, []string{domain.PermitTypeLATRALicense}, policies, permits)

	assert.Equal(t, StatusCompliant, report.Status)
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Expiring)
}

func TestEvaluateVehicle_MissingInsurance(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	report := evaluateVehicle("veh-1", asOf, 30, nil, nil, nil)

	assert.Equal(t, StatusNonCompliant, report.Status)
	assert.Equal(t, []Issue{{Kind: IssueMissingInsurance}}, report.Issues)
}

func TestEvaluateVehicle_LapsedInsuranceStillMarkedActiveInDB(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(asOf.AddDate(-1, 0, 0)),
		EndDate:     asOf.AddDate(0, 0, -1),
	}}

	report := evaluateVehicle("veh-1", asOf, 30, nil, policies, nil)

	assert.Equal(t, StatusNonCompliant, report.Status)
	assert.Equal(t, []Issue{{Kind: IssueLapsedInsurance}}, report.Issues)
}

func TestEvaluateVehicle_AtRiskWhenExpiringWithinWindow(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(asOf.AddDate(0, -11, 0)),
		EndDate:     asOf.AddDate(0, 0, 10),
	}}

	report := evaluateVehicle("veh-1", asOf, 30, nil, policies, nil)

	assert.Equal(t, StatusAtRisk, report.Status)
	assert.Empty(t, report.Issues)
	assert.Len(t, report.Expiring, 1)
	assert.Equal(t, RecordPolicy, report.Expiring[0].Kind)
}

func TestEvaluateVehicle_MissingRequiredPermitType(t *testing.T) {
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(asOf.AddDate(0, -1, 0)),
		EndDate:     asOf.AddDate(1, 0, 0),
	}}

	report := evaluateVehicle("veh-1", asOf, 30, []string{domain.PermitTypeLATRALicense}, policies, nil)

	assert.Equal(t, StatusNonCompliant, report.Status)
	assert.Equal(t, []Issue{{Kind: IssueMissingPermit, PermitType: domain.PermitTypeLATRALicense}}, report.Issues)
}

func TestEvaluateVehicle_PastDateEvaluation(t *testing.T) {
	// Vehicle has coverage for one full year; asking about a date before the
	// policy was activated should surface as non-compliant even though the
	// vehicle is compliant "today".
	activated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(activated),
		EndDate:     activated.AddDate(1, 0, 0),
	}}

	before := activated.AddDate(0, 0, -5)
	report := evaluateVehicle("veh-1", before, 30, nil, policies, nil)
	assert.Equal(t, StatusNonCompliant, report.Status)

	during := activated.AddDate(0, 1, 0)
	report = evaluateVehicle("veh-1", during, 30, nil, policies, nil)
	assert.Equal(t, StatusCompliant, report.Status)
}

func TestEvaluateVehicle_NotYetInForceUntilStartDate(t *testing.T) {
	// Activated today but start_date is a month out: §4.5/§9's "current
	// contract" for this open question treats the record as not-yet-in-force
	// until start_date, even though the row is already status=active.
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	startDate := asOf.AddDate(0, 1, 0)
	policies := []domain.Policy{{
		ID: "pol-1", Status: domain.PolicyStatusActive,
		ActivatedAt: ptrTime(asOf),
		StartDate:   startDate,
		EndDate:     startDate.AddDate(1, 0, 0),
	}}

	report := evaluateVehicle("veh-1", asOf, 30, nil, policies, nil)
	assert.Equal(t, StatusNonCompliant, report.Status)
	assert.Equal(t, []Issue{{Kind: IssueMissingInsurance}}, report.Issues)

	report = evaluateVehicle("veh-1", startDate, 30, nil, policies, nil)
	assert.Equal(t, StatusCompliant, report.Status)
}
