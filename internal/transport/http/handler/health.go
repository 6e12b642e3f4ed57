package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PendingCounter reports how many pending credentials are held.
type PendingCounter interface {
	Len() int
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	pending PendingCounter
}

func NewHealthHandler(pending PendingCounter) *HealthHandler {
	return &HealthHandler{pending: pending}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "status":
		writeJSON(w, http.StatusOK, MessageEnvelope{
			Message: "ok",
			Data:    map[string]int{"pending_credentials": h.pending.Len()},
		})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
