// Package handlers provides HTTP handlers for roster master data.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/roster"
)

// Handler handles roster HTTP requests
type Handler struct {
	regions  *roster.RegionRepository
	shifts   *roster.ShiftRepository
	analysts *roster.AnalystRepository
	holidays *roster.HolidayRepository
	log      zerolog.Logger
}

// NewHandler creates a new roster handler
func NewHandler(
	regions *roster.RegionRepository,
	shifts *roster.ShiftRepository,
	analysts *roster.AnalystRepository,
	holidays *roster.HolidayRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		regions:  regions,
		shifts:   shifts,
		analysts: analysts,
		holidays: holidays,
		log:      log.With().Str("handler", "roster").Logger(),
	}
}

// HandleListRegions handles GET /api/roster/regions
func (h *Handler) HandleListRegions(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	regions, err := h.regions.List(activeOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list regions")
		http.Error(w, "Failed to list regions", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"regions": regions,
		"count":   len(regions),
	})
}

// HandleGetRegion handles GET /api/roster/regions/{id}
func (h *Handler) HandleGetRegion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	region, err := h.regions.GetByID(id)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", id).Msg("Failed to get region")
		http.Error(w, "Failed to get region", http.StatusInternalServerError)
		return
	}
	if region == nil {
		http.Error(w, "Region not found", http.StatusNotFound)
		return
	}

	h.writeData(w, region)
}

// HandleCreateRegion handles POST /api/roster/regions
func (h *Handler) HandleCreateRegion(w http.ResponseWriter, r *http.Request) {
	var region domain.Region
	if err := json.NewDecoder(r.Body).Decode(&region); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.regions.Create(region)
	if err != nil {
		if domain.KindOf(err) == domain.KindConfig {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to create region")
		http.Error(w, "Failed to create region", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSetRegionActive handles PUT /api/roster/regions/{id}/active
func (h *Handler) HandleSetRegionActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.regions.SetActive(id, body.Active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Region not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("region_id", id).Msg("Failed to update region")
		http.Error(w, "Failed to update region", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"id": id, "active": body.Active})
}

// HandleListShifts handles GET /api/roster/regions/{id}/shifts
func (h *Handler) HandleListShifts(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")

	shifts, err := h.shifts.ListByRegion(regionID)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to list shifts")
		http.Error(w, "Failed to list shifts", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"shifts": shifts,
		"count":  len(shifts),
	})
}

// HandleCreateShift handles POST /api/roster/regions/{id}/shifts
func (h *Handler) HandleCreateShift(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")

	var shift domain.ShiftDefinition
	if err := json.NewDecoder(r.Body).Decode(&shift); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	shift.RegionID = regionID

	if shift.Name == "" || shift.StartTime == "" || shift.EndTime == "" {
		http.Error(w, "name, start_time and end_time are required", http.StatusBadRequest)
		return
	}

	created, err := h.shifts.Create(shift)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to create shift")
		http.Error(w, "Failed to create shift", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListAnalysts handles GET /api/roster/regions/{id}/analysts
func (h *Handler) HandleListAnalysts(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")
	activeOnly := r.URL.Query().Get("active") != "false"

	analysts, err := h.analysts.ListByRegion(regionID, activeOnly)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to list analysts")
		http.Error(w, "Failed to list analysts", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"analysts": analysts,
		"count":    len(analysts),
	})
}

// HandleGetAnalyst handles GET /api/roster/analysts/{id}
func (h *Handler) HandleGetAnalyst(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	analyst, err := h.analysts.GetByID(id)
	if err != nil {
		h.log.Error().Err(err).Str("analyst_id", id).Msg("Failed to get analyst")
		http.Error(w, "Failed to get analyst", http.StatusInternalServerError)
		return
	}
	if analyst == nil {
		http.Error(w, "Analyst not found", http.StatusNotFound)
		return
	}

	h.writeData(w, analyst)
}

// HandleCreateAnalyst handles POST /api/roster/analysts
func (h *Handler) HandleCreateAnalyst(w http.ResponseWriter, r *http.Request) {
	var analyst domain.Analyst
	if err := json.NewDecoder(r.Body).Decode(&analyst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if analyst.DisplayName == "" || analyst.RegionID == "" {
		http.Error(w, "display_name and region_id are required", http.StatusBadRequest)
		return
	}

	created, err := h.analysts.Create(analyst)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create analyst")
		http.Error(w, "Failed to create analyst", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleUpdateAnalyst handles PUT /api/roster/analysts/{id}
func (h *Handler) HandleUpdateAnalyst(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var analyst domain.Analyst
	if err := json.NewDecoder(r.Body).Decode(&analyst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	analyst.ID = id

	if err := h.analysts.Update(analyst); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Analyst not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", id).Msg("Failed to update analyst")
		http.Error(w, "Failed to update analyst", http.StatusInternalServerError)
		return
	}

	h.writeData(w, analyst)
}

// HandleDeactivateAnalyst handles DELETE /api/roster/analysts/{id}
func (h *Handler) HandleDeactivateAnalyst(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.analysts.Deactivate(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Analyst not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", id).Msg("Failed to deactivate analyst")
		http.Error(w, "Failed to deactivate analyst", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"id": id, "active": false})
}

// HandleListHolidays handles GET /api/roster/regions/{id}/holidays
func (h *Handler) HandleListHolidays(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		http.Error(w, "start and end query parameters are required", http.StatusBadRequest)
		return
	}

	holidays, err := h.holidays.ListByRegionRange(regionID, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to list holidays")
		http.Error(w, "Failed to list holidays", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"holidays": holidays,
		"count":    len(holidays),
	})
}

// HandleCreateHoliday handles POST /api/roster/regions/{id}/holidays
func (h *Handler) HandleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "id")

	var holiday domain.Holiday
	if err := json.NewDecoder(r.Body).Decode(&holiday); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	holiday.RegionID = regionID

	if holiday.Date == "" || holiday.Name == "" {
		http.Error(w, "date and name are required", http.StatusBadRequest)
		return
	}

	created, err := h.holidays.Create(holiday)
	if err != nil {
		h.log.Error().Err(err).Str("region_id", regionID).Msg("Failed to create holiday")
		http.Error(w, "Failed to create holiday", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
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
