package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/compliance"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type ComplianceHandler struct {
	service *compliance.Service
	logger  *logger.Logger
}

func NewComplianceHandler(svc *compliance.Service, log *logger.Logger) *ComplianceHandler {
	return &ComplianceHandler{service: svc, logger: log}
}

// asOf parses an optional ?as_of=YYYY-MM-DD query param; zero value means
// "evaluate at the current time".
func asOf(r *http.Request) time.Time {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *ComplianceHandler) VehicleStatus(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	status, err := h.service.VehicleStatus(r.Context(), vehicleID, asOf(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

func (h *ComplianceHandler) TenantSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.TenantSummary(r.Context(), asOf(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}
