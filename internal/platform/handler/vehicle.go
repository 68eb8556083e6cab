package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type VehicleHandler struct {
	vehicles *repository.VehicleRepository
	logger   *logger.Logger
}

func NewVehicleHandler(vehicles *repository.VehicleRepository, log *logger.Logger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, logger: log}
}

type createVehicleRequest struct {
	RegistrationPlate string `json:"registration_plate" validate:"required"`
	ChassisNumber     string `json:"chassis_number" validate:"required"`
	EngineNumber      string `json:"engine_number" validate:"required"`
	VehicleType       string `json:"vehicle_type" validate:"required"`
	UsageCategory     string `json:"usage_category" validate:"required"`
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVehicleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	v := &domain.Vehicle{
		RegistrationPlate: req.RegistrationPlate,
		ChassisNumber:     req.ChassisNumber,
		EngineNumber:      req.EngineNumber,
		VehicleType:       domain.VehicleType(req.VehicleType),
		UsageCategory:     req.UsageCategory,
		Status:            domain.VehicleStatusActive,
	}
	if err := h.vehicles.SaveNew(r.Context(), v); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, v)
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.vehicles.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, v)
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	filter := repository.VehicleFilter{
		Status:      domain.VehicleStatus(r.URL.Query().Get("status")),
		VehicleType: domain.VehicleType(r.URL.Query().Get("vehicle_type")),
	}

	vehicles, total, err := h.vehicles.List(r.Context(), filter, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, vehicles, meta(page, total))
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.vehicles.SoftDelete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
