package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/report"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type ReportHandler struct {
	service *report.Service
	logger  *logger.Logger
}

func NewReportHandler(svc *report.Service, log *logger.Logger) *ReportHandler {
	return &ReportHandler{service: svc, logger: log}
}

func (h *ReportHandler) ActivePolicies(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	policies, total, err := h.service.ActivePolicies(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, policies, meta(page, total))
}

func (h *ReportHandler) ExpiredPolicies(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	policies, total, err := h.service.ExpiredPolicies(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, policies, meta(page, total))
}

func (h *ReportHandler) ActivePermits(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	permits, total, err := h.service.ActivePermits(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, permits, meta(page, total))
}

func (h *ReportHandler) ExpiredPermits(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	permits, total, err := h.service.ExpiredPermits(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, permits, meta(page, total))
}

// RegistrationsInRange reports permits whose start_date falls in [from, to],
// e.g. "LATRA registrations issued this quarter".
func (h *ReportHandler) RegistrationsInRange(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httputil.Error(w, httputilBadDate("from"))
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httputil.Error(w, httputilBadDate("to"))
		return
	}
	if to.Before(from) {
		httputil.Error(w, errors.BadRequest("to must not be before from"))
		return
	}

	page := pagination(r)
	permits, total, err := h.service.RegistrationsInRange(r.Context(), from, to, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, permits, meta(page, total))
}

func (h *ReportHandler) VehicleSnapshot(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	snapshot, err := h.service.VehicleSnapshot(r.Context(), vehicleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, snapshot)
}
