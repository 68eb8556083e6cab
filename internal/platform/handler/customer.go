package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type CustomerHandler struct {
	customers  *repository.CustomerRepository
	ownerships *repository.OwnershipRepository
	logger     *logger.Logger
}

func NewCustomerHandler(customers *repository.CustomerRepository, ownerships *repository.OwnershipRepository, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, ownerships: ownerships, logger: log}
}

type createCustomerRequest struct {
	Kind           string  `json:"kind" validate:"required,oneof=individual company"`
	DisplayName    string  `json:"display_name" validate:"required"`
	PrimaryContact string  `json:"primary_contact" validate:"required"`
	NationalID     *string `json:"national_id,omitempty"`
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	c := &domain.Customer{
		Kind:           domain.CustomerKind(req.Kind),
		DisplayName:    req.DisplayName,
		PrimaryContact: req.PrimaryContact,
		NationalID:     req.NationalID,
	}
	if err := h.customers.SaveNew(r.Context(), c); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, c)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.customers.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c)
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination(r)
	customers, total, err := h.customers.List(r.Context(), page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, customers, meta(page, total))
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.customers.SoftDelete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// CurrentOwner returns the vehicle's active ownership record.
func (h *CustomerHandler) CurrentOwner(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	o, err := h.ownerships.CurrentOwner(r.Context(), vehicleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, o)
}

type transferOwnershipRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
}

// TransferOwnership closes the vehicle's current ownership span and opens a
// new one for the given customer (§3: ownership is a history, not a field).
func (h *CustomerHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	var req transferOwnershipRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	o, err := h.ownerships.Transfer(r.Context(), vehicleID, req.CustomerID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, o)
}
