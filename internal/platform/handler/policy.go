package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/lifecycle"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type PolicyHandler struct {
	engine   *lifecycle.PolicyEngine
	policies *repository.PolicyRepository
	payments *repository.PaymentRepository
	logger   *logger.Logger
}

func NewPolicyHandler(engine *lifecycle.PolicyEngine, policies *repository.PolicyRepository, payments *repository.PaymentRepository, log *logger.Logger) *PolicyHandler {
	return &PolicyHandler{engine: engine, policies: policies, payments: payments, logger: log}
}

type createPolicyRequest struct {
	VehicleID     string  `json:"vehicle_id" validate:"required"`
	PolicyNumber  string  `json:"policy_number" validate:"required"`
	InsurerName   string  `json:"insurer_name" validate:"required"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       string  `json:"end_date" validate:"required"`
	PremiumAmount float64 `json:"premium_amount" validate:"required,gt=0"`
}

func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httputil.Error(w, httputilBadDate("start_date"))
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httputil.Error(w, httputilBadDate("end_date"))
		return
	}

	p := &domain.Policy{
		VehicleID:     req.VehicleID,
		PolicyNumber:  req.PolicyNumber,
		InsurerName:   req.InsurerName,
		StartDate:     start,
		EndDate:       end,
		PremiumAmount: req.PremiumAmount,
	}

	created, err := h.engine.CreateDraft(r.Context(), actor(r), p)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, created)
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.policies.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

func (h *PolicyHandler) ListByVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	policies, err := h.policies.ListByVehicle(r.Context(), vehicleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, policies)
}

type editPolicyRequest struct {
	InsurerName   string  `json:"insurer_name" validate:"required"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       string  `json:"end_date" validate:"required"`
	PremiumAmount float64 `json:"premium_amount" validate:"required,gt=0"`
}

func (h *PolicyHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req editPolicyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httputil.Error(w, httputilBadDate("start_date"))
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httputil.Error(w, httputilBadDate("end_date"))
		return
	}

	p, err := h.engine.Edit(r.Context(), actor(r), id, req.InsurerName, start, end, req.PremiumAmount)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

// RequestActivation moves a draft policy to pending_payment.
func (h *PolicyHandler) RequestActivation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.engine.RequestActivation(r.Context(), actor(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

func (h *PolicyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.engine.Activate(r.Context(), actor(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

type cancelPolicyRequest struct {
	Reason string  `json:"reason" validate:"required"`
	Note   *string `json:"note,omitempty"`
}

func (h *PolicyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelPolicyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.engine.Cancel(r.Context(), actor(r), id, domain.PolicyCancellationReason(req.Reason), req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

type recordPaymentRequest struct {
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	ReceivedAt string  `json:"received_at" validate:"required"`
}

// RecordPayment logs an unverified payment against a policy. A payment only
// counts toward I-POL-3 once an admin or manager verifies it via VerifyPayment.
func (h *PolicyHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")
	var req recordPaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	receivedAt, err := time.Parse("2006-01-02", req.ReceivedAt)
	if err != nil {
		httputil.Error(w, httputilBadDate("received_at"))
		return
	}

	p := &domain.Payment{PolicyID: policyID, Amount: req.Amount, ReceivedAt: receivedAt}
	if err := h.payments.Record(r.Context(), p); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, p)
}

func (h *PolicyHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if err := h.payments.Verify(r.Context(), paymentID, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *PolicyHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")
	payments, err := h.payments.ListByPolicy(r.Context(), policyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, payments)
}
