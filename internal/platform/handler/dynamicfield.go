package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/domain"
	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/errors"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
	"github.com/fleetcompliance/platform/pkg/tenant"
)

type DynamicFieldHandler struct {
	fields *repository.DynamicFieldRepository
	logger *logger.Logger
}

func NewDynamicFieldHandler(fields *repository.DynamicFieldRepository, log *logger.Logger) *DynamicFieldHandler {
	return &DynamicFieldHandler{fields: fields, logger: log}
}

type createDefinitionRequest struct {
	EntityKind string   `json:"entity_kind" validate:"required,oneof=customer vehicle policy permit"`
	FieldKey   string   `json:"field_key" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	DataType   string   `json:"data_type" validate:"required,oneof=text number date bool choice"`
	Choices    []string `json:"choices,omitempty"`
	Required   bool     `json:"required"`
	Order      int      `json:"order"`
}

// CreateDefinition defines a custom field owned by the active tenant. No HTTP
// route creates global templates (visible to every tenant).
func (h *DynamicFieldHandler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req createDefinitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, errors.TenantUnbound())
		return
	}

	d := &domain.DynamicFieldDefinition{
		TenantID:   &tenantID,
		EntityKind: domain.DynamicFieldEntityKind(req.EntityKind),
		FieldKey:   req.FieldKey,
		Name:       req.Name,
		DataType:   domain.DynamicFieldDataType(req.DataType),
		Choices:    req.Choices,
		Required:   req.Required,
		Order:      req.Order,
		IsActive:   true,
	}
	if err := h.fields.SaveDefinition(r.Context(), d); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, d)
}

func (h *DynamicFieldHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	entityKind := domain.DynamicFieldEntityKind(chi.URLParam(r, "entityKind"))
	defs, err := h.fields.ListDefinitions(r.Context(), entityKind)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, defs)
}

func (h *DynamicFieldHandler) DeactivateDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.fields.Deactivate(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

type setValueRequest struct {
	DefinitionID string      `json:"definition_id" validate:"required"`
	EntityKind   string      `json:"entity_kind" validate:"required,oneof=customer vehicle policy permit"`
	EntityID     string      `json:"entity_id" validate:"required"`
	DataType     string      `json:"data_type" validate:"required,oneof=text number date bool choice"`
	Value        interface{} `json:"value"`
}

// SetValue writes one typed value for one (definition, entity) pair. Only
// the typed field matching data_type is populated; the rest stay nil.
func (h *DynamicFieldHandler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req setValueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	v := &domain.DynamicFieldValue{
		DefinitionID: req.DefinitionID,
		EntityKind:   domain.DynamicFieldEntityKind(req.EntityKind),
		EntityID:     req.EntityID,
	}

	switch domain.DynamicFieldDataType(req.DataType) {
	case domain.DynamicFieldText:
		if s, ok := req.Value.(string); ok {
			v.ValueText = &s
		}
	case domain.DynamicFieldNumber:
		if n, ok := req.Value.(float64); ok {
			v.ValueNumber = &n
		}
	case domain.DynamicFieldDate:
		if s, ok := req.Value.(string); ok {
			if parsed, err := time.Parse("2006-01-02", s); err == nil {
				v.ValueDate = &parsed
			}
		}
	case domain.DynamicFieldBool:
		if b, ok := req.Value.(bool); ok {
			v.ValueBool = &b
		}
	case domain.DynamicFieldChoice:
		if s, ok := req.Value.(string); ok {
			v.ValueChoice = &s
		}
	}

	if err := h.fields.SaveValue(r.Context(), v); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, v)
}

func (h *DynamicFieldHandler) ListValues(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")
	values, err := h.fields.ListValues(r.Context(), entityID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, values)
}
