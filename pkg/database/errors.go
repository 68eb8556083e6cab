package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/fleetcompliance/platform/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "chk_super_admin_no_tenant"):
		return errors.Validation(map[string]string{
			"tenant_id": "must be empty for super_admin users and required otherwise",
		})

	case strings.Contains(constraint, "platform_users") && strings.Contains(constraint, "role"):
		return errors.Validation(map[string]string{
			"role": "must be one of: super_admin, admin, manager, agent",
		})

	case strings.Contains(constraint, "policies") && strings.Contains(constraint, "status"):
		return errors.Validation(map[string]string{
			"status": "must be one of: draft, pending_payment, active, cancelled, expired",
		})

	case strings.Contains(constraint, "permits") && strings.Contains(constraint, "status"):
		return errors.Validation(map[string]string{
			"status": "must be one of: draft, active, cancelled, expired",
		})

	case strings.Contains(constraint, "notifications") && strings.Contains(constraint, "priority"):
		return errors.Validation(map[string]string{
			"priority": "must be one of: low, normal, high",
		})

	case strings.Contains(constraint, "audit_entries") && strings.Contains(constraint, "outcome"):
		return errors.Validation(map[string]string{
			"outcome": "must be one of: success, denied, rejected",
		})

	case strings.Contains(constraint, "entity_kind"):
		return errors.Validation(map[string]string{
			"entity_kind": "must be one of: vehicle, policy, permit, customer",
		})

	case strings.Contains(constraint, "value_type"):
		return errors.Validation(map[string]string{
			"value_type": "must be one of: text, number, date, bool, choice",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint maps specific unique-constraint violations to domain
// errors. The temporal-overlap indexes (I-POL-1, I-PERM-1) surface as
// ErrOverlap rather than a generic conflict, since they guard a business
// invariant rather than a plain identity collision.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "uq_policies_one_active_per_vehicle"):
		return errors.Overlap("vehicle already has an active insurance policy")

	case strings.Contains(constraint, "uq_permits_one_active_per_vehicle_type"):
		return errors.Overlap("vehicle already has an active permit of this type")

	case strings.Contains(constraint, "vehicles") && strings.Contains(constraint, "vin"):
		return errors.Conflict("a vehicle with this VIN already exists for this tenant")

	case strings.Contains(constraint, "customers") && strings.Contains(constraint, "national_id"):
		return errors.Conflict("a customer with this national ID already exists for this tenant")

	case strings.Contains(constraint, "platform_users") && strings.Contains(constraint, "email"):
		return errors.Conflict("a user with this email already exists")

	case strings.Contains(constraint, "tenants") && strings.Contains(constraint, "slug"):
		return errors.Conflict("a tenant with this slug already exists")

	case strings.Contains(constraint, "history_records"):
		return errors.Conflict("a history record for this entity version already exists")

	case strings.Contains(constraint, "notifications") && strings.Contains(constraint, "dedupe"):
		return errors.Conflict("a notification for this cycle has already been enqueued")

	default:
		return errors.Conflict("a record with these values already exists")
	}
}
