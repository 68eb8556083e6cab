package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/repository"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type AuditHandler struct {
	audit   *repository.AuditRepository
	history *repository.HistoryRepository
	logger  *logger.Logger
}

func NewAuditHandler(audit *repository.AuditRepository, history *repository.HistoryRepository, log *logger.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, history: history, logger: log}
}

// ListByEntity returns every mutation attempt, successful or denied,
// recorded against one entity (§7: audit trail is append-only).
func (h *AuditHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	entityKind := chi.URLParam(r, "entityKind")
	entityID := chi.URLParam(r, "entityID")

	entries, err := h.audit.ListByEntity(r.Context(), entityKind, entityID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entries)
}

// HistoryAsOf reconstructs an entity's state as of a given date from its
// point-in-time snapshots.
func (h *AuditHandler) HistoryAsOf(w http.ResponseWriter, r *http.Request) {
	entityKind := chi.URLParam(r, "entityKind")
	entityID := chi.URLParam(r, "entityID")
	date := r.URL.Query().Get("as_of")
	if date == "" {
		httputil.Error(w, httputilBadDate("as_of"))
		return
	}

	record, err := h.history.AsOf(r.Context(), entityKind, entityID, date)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, record)
}
