// Package handlers provides HTTP handlers for rotation statistics and
// fairness history reports.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/statistics"
)

// Handler handles statistics HTTP requests
type Handler struct {
	service *statistics.Service
	log     zerolog.Logger
}

// NewHandler creates a new statistics handler
func NewHandler(service *statistics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "statistics").Logger(),
	}
}

// HandleRotationStatistics handles GET /api/rotation/statistics. The report
// covers one region over an inclusive date range.
func (h *Handler) HandleRotationStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	regionID := q.Get("region_id")
	start := q.Get("start_date")
	end := q.Get("end_date")

	report, err := h.service.RotationReport(regionID, start, end)
	if err != nil {
		if domain.KindOf(err) == domain.KindConfig {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to build rotation report")
		http.Error(w, "Failed to build rotation report", http.StatusInternalServerError)
		return
	}

	h.writeData(w, report)
}

// HandleFairnessHistory handles GET /api/statistics/fairness-history
func (h *Handler) HandleFairnessHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	points, err := h.service.FairnessHistory(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build fairness history")
		http.Error(w, "Failed to build fairness history", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// writeData writes a 200 response with the standard data/metadata envelope
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	payload := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
