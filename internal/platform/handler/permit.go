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

type PermitHandler struct {
	engine  *lifecycle.PermitEngine
	permits *repository.PermitRepository
	logger  *logger.Logger
}

func NewPermitHandler(engine *lifecycle.PermitEngine, permits *repository.PermitRepository, log *logger.Logger) *PermitHandler {
	return &PermitHandler{engine: engine, permits: permits, logger: log}
}

type createPermitRequest struct {
	VehicleID        string `json:"vehicle_id" validate:"required"`
	PermitType       string `json:"permit_type" validate:"required"`
	ReferenceNumber  string `json:"reference_number" validate:"required"`
	IssuingAuthority string `json:"issuing_authority" validate:"required"`
	StartDate        string `json:"start_date" validate:"required"`
	EndDate          string `json:"end_date" validate:"required"`
}

func (h *PermitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPermitRequest
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

	p := &domain.Permit{
		VehicleID:        req.VehicleID,
		PermitType:       req.PermitType,
		ReferenceNumber:  req.ReferenceNumber,
		IssuingAuthority: req.IssuingAuthority,
		StartDate:        start,
		EndDate:          end,
	}

	created, err := h.engine.CreateDraft(r.Context(), actor(r), p)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, created)
}

func (h *PermitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.permits.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

func (h *PermitHandler) ListByVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	permits, err := h.permits.ListByVehicle(r.Context(), vehicleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, permits)
}

type editPermitRequest struct {
	ReferenceNumber  string `json:"reference_number" validate:"required"`
	IssuingAuthority string `json:"issuing_authority" validate:"required"`
	StartDate        string `json:"start_date" validate:"required"`
	EndDate          string `json:"end_date" validate:"required"`
}

func (h *PermitHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req editPermitRequest
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

	p, err := h.engine.Edit(r.Context(), actor(r), id, req.ReferenceNumber, req.IssuingAuthority, start, end)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

func (h *PermitHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.engine.Activate(r.Context(), actor(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

type cancelPermitRequest struct {
	Reason string  `json:"reason" validate:"required"`
	Note   *string `json:"note,omitempty"`
}

func (h *PermitHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelPermitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.engine.Cancel(r.Context(), actor(r), id, domain.PermitCancellationReason(req.Reason), req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}
