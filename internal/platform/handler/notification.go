package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetcompliance/platform/internal/platform/notify"
	"github.com/fleetcompliance/platform/pkg/httputil"
	"github.com/fleetcompliance/platform/pkg/logger"
)

type NotificationHandler struct {
	service *notify.Service
	logger  *logger.Logger
}

func NewNotificationHandler(svc *notify.Service, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: log}
}

// ListMine returns the authenticated user's own notification queue.
func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	page := pagination(r)

	notifications, err := h.service.ListForRecipient(r.Context(), userID, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.MarkRead(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
