// Package handlers provides HTTP handlers for schedule generation, queries,
// swap validation and rotation state.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/schedule"
)

// Handler handles schedule HTTP requests
type Handler struct {
	engine    *schedule.Engine
	schedules *schedule.Repository
	genLog    *schedule.GenerationLogRepository
	swaps     *schedule.SwapValidator
	rotations *rotation.Repository
	log       zerolog.Logger
}

// NewHandler creates a new schedule handler
func NewHandler(
	engine *schedule.Engine,
	schedules *schedule.Repository,
	genLog *schedule.GenerationLogRepository,
	swaps *schedule.SwapValidator,
	rotations *rotation.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine:    engine,
		schedules: schedules,
		genLog:    genLog,
		swaps:     swaps,
		rotations: rotations,
		log:       log.With().Str("handler", "schedule").Logger(),
	}
}

// HandleGenerate handles POST /api/schedule/generate. The request context
// carries cancellation: a dropped client aborts the walk before anything is
// persisted. A deadline-clipped run without save_partial comes back 200
// with the partial result and a warning instead of an error status.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var gctx domain.GenerationContext
	if err := json.NewDecoder(r.Body).Decode(&gctx); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Generate(r.Context(), gctx)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindPartialResult:
			if result != nil {
				h.writeJSON(w, http.StatusOK, map[string]interface{}{
					"data": result,
					"metadata": map[string]interface{}{
						"timestamp": time.Now().Format(time.RFC3339),
						"partial":   true,
						"warning":   err.Error(),
					},
				})
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		case domain.KindConfig:
			http.Error(w, err.Error(), http.StatusBadRequest)
		case domain.KindCancelled:
			http.Error(w, err.Error(), http.StatusRequestTimeout)
		default:
			h.log.Error().Err(err).Str("region_id", gctx.RegionID).Msg("Generation failed")
			http.Error(w, "Schedule generation failed", http.StatusInternalServerError)
		}
		return
	}

	h.writeData(w, result)
}

// HandleListSchedules handles GET /api/schedule. Query parameters select
// either a region view or an analyst view over an inclusive date range.
func (h *Handler) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	regionID := q.Get("region_id")
	analystID := q.Get("analyst_id")
	start := q.Get("start_date")
	end := q.Get("end_date")

	if start == "" || end == "" {
		http.Error(w, "start_date and end_date are required", http.StatusBadRequest)
		return
	}

	var (
		schedules []domain.Schedule
		err       error
	)
	switch {
	case analystID != "":
		schedules, err = h.schedules.GetByAnalystRange(analystID, start, end)
	case regionID != "":
		schedules, err = h.schedules.GetByRegionRange(regionID, start, end)
	default:
		http.Error(w, "region_id or analyst_id is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list schedules")
		http.Error(w, "Failed to list schedules", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// HandleDeleteSchedule handles DELETE /api/schedule. The uniqueness key
// identifies the row.
func (h *Handler) HandleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	analystID := q.Get("analyst_id")
	date := q.Get("date")
	shiftType := q.Get("shift_type")

	if analystID == "" || date == "" || shiftType == "" {
		http.Error(w, "analyst_id, date and shift_type are required", http.StatusBadRequest)
		return
	}

	if err := h.schedules.Delete(analystID, date, shiftType); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			http.Error(w, "Schedule not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to delete schedule")
		http.Error(w, "Failed to delete schedule", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"deleted": true})
}

// HandleListGenerationLog handles GET /api/schedule/generation-log
func (h *Handler) HandleListGenerationLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.genLog.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list generation log")
		http.Error(w, "Failed to list generation log", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"runs":  entries,
		"count": len(entries),
	})
}

// HandleGetGenerationRun handles GET /api/schedule/generation-log/{runID}
func (h *Handler) HandleGetGenerationRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	entry, err := h.genLog.GetByRunID(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get generation run")
		http.Error(w, "Failed to get generation run", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "Generation run not found", http.StatusNotFound)
		return
	}

	h.writeData(w, entry)
}

// HandleValidateSwap handles POST /api/schedule/swaps/validate
func (h *Handler) HandleValidateSwap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceAnalyst string `json:"source_analyst"`
		SourceDate    string `json:"source_date"`
		TargetAnalyst string `json:"target_analyst"`
		TargetDate    string `json:"target_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	violations, err := h.swaps.ValidateSwap(body.SourceAnalyst, body.SourceDate, body.TargetAnalyst, body.TargetDate)
	if err != nil {
		h.writeSwapError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// HandleValidateRangeSwap handles POST /api/schedule/swaps/validate-range
func (h *Handler) HandleValidateRangeSwap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceAnalyst string `json:"source_analyst"`
		TargetAnalyst string `json:"target_analyst"`
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	violations, err := h.swaps.ValidateRangeSwap(body.SourceAnalyst, body.TargetAnalyst, body.StartDate, body.EndDate)
	if err != nil {
		h.writeSwapError(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// HandleGetRotationState handles GET /api/rotation/state
func (h *Handler) HandleGetRotationState(w http.ResponseWriter, r *http.Request) {
	states, err := h.rotations.List(domain.CoreAlgorithmName)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rotation state")
		http.Error(w, "Failed to load rotation state", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"algorithm": domain.CoreAlgorithmName,
		"states":    states,
	})
}

// HandleResetRotation handles POST /api/rotation/reset. With a
// shift_type it clears that slot state; without one it clears every state
// under the algorithm. The next generation reseeds from weekend history.
func (h *Handler) HandleResetRotation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ShiftType string `json:"shift_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	if body.ShiftType != "" {
		err = h.rotations.Reset(domain.CoreAlgorithmName, body.ShiftType)
	} else {
		err = h.rotations.ResetAll(domain.CoreAlgorithmName)
	}
	if err != nil {
		h.log.Error().Err(err).Str("shift_type", body.ShiftType).Msg("Failed to reset rotation state")
		http.Error(w, "Failed to reset rotation state", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"reset":      true,
		"shift_type": body.ShiftType,
	})
}

func (h *Handler) writeSwapError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindConfig:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case domain.KindSwapIntegrity:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Msg("Swap validation failed")
		http.Error(w, "Swap validation failed", http.StatusInternalServerError)
	}
}

// writeData writes a 200 response with the standard data/metadata envelope
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
