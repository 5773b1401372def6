package handlers

import (
	"net/http"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"

	"go.uber.org/zap"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Health check failed", err)
		writeJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// StatsJSON serves the signed-in user's counters for scripts and widgets.
func (h *Handler) StatsJSON(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())

	stats, err := h.tasks.Stats(r.Context(), u.ID)
	if err != nil {
		logger.Error("HTTP: Could not load stats", err, zap.Int64("user_id", u.ID))
		responseWithJSON(w, http.StatusInternalServerError, toPayload("error", "internal server error"))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("stats", dto.FromStats(stats)))
}
