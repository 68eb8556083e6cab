package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

// PaymentRepository handles Payment persistence (C3/C4). Payments are
// append-only ledger entries: there is no Update, only Record + Verify.
type PaymentRepository struct {
	db *database.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record inserts a new (unverified) payment against a policy.
func (r *PaymentRepository) Record(ctx context.Context, p *domain.Payment) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO payments (id, tenant_id, policy_id, amount, received_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`
		err := r.db.QueryRowxContext(ctx, query, p.ID, tenantID, p.PolicyID, p.Amount, p.ReceivedAt).
			Scan(&p.CreatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// Verify marks a payment as verified by actorUserID, using an optimistic
// WHERE verified_at IS NULL so double-verification is a no-op error rather
// than silently re-stamping verified_by.
func (r *PaymentRepository) Verify(ctx context.Context, id, actorUserID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return errors.TenantUnbound()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, `
			UPDATE payments SET verified_at = NOW(), verified_by = $2
			WHERE id = $1 AND verified_at IS NULL
		`, id, actorUserID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.Conflict("payment already verified or does not exist")
		}
		return nil
	})
}

// ListByPolicy returns every payment (verified or not) recorded against a
// policy. Activation reads the same rows through ListByPolicyTx before
// calling Policy.IsFullyPaid.
func (r *PaymentRepository) ListByPolicy(ctx context.Context, policyID string) ([]domain.Payment, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, errors.TenantUnbound()
	}

	var payments []domain.Payment
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, tenant_id, policy_id, amount, received_at, verified_at, verified_by, created_at
			FROM payments WHERE policy_id = $1 ORDER BY received_at
		`
		return r.db.SelectContext(ctx, &payments, query, policyID)
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByPolicyTx is ListByPolicy for use inside an already-open
// WithTenantRLS transaction (the activate() guard needs this mid-transition).
func (r *PaymentRepository) ListByPolicyTx(ctx context.Context, policyID string) ([]domain.Payment, error) {
	var payments []domain.Payment
	query := `
		SELECT id, tenant_id, policy_id, amount, received_at, verified_at, verified_by, created_at
		FROM payments WHERE policy_id = $1 ORDER BY received_at
	`
	if err := r.db.SelectContext(ctx, &payments, query, policyID); err != nil {
		return nil, err
	}
	return payments, nil
}
