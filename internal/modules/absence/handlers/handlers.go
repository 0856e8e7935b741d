// Package handlers provides HTTP handlers for vacation and absence records.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/absence"
)

// Handler handles vacation and absence HTTP requests
type Handler struct {
	vacations *absence.VacationRepository
	absences  *absence.Repository
	log       zerolog.Logger
}

// NewHandler creates a new absence handler
func NewHandler(
	vacations *absence.VacationRepository,
	absences *absence.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		vacations: vacations,
		absences:  absences,
		log:       log.With().Str("handler", "absence").Logger(),
	}
}

// HandleListVacations handles GET /api/vacations.
// With an analyst query parameter it returns that analyst's requests; otherwise
// start and end are required and the overlapping window is returned.
func (h *Handler) HandleListVacations(w http.ResponseWriter, r *http.Request) {
	if analystID := r.URL.Query().Get("analyst"); analystID != "" {
		vacations, err := h.vacations.ListByAnalyst(analystID)
		if err != nil {
			h.log.Error().Err(err).Str("analyst_id", analystID).Msg("Failed to list vacations")
			http.Error(w, "Failed to list vacations", http.StatusInternalServerError)
			return
		}
		h.writeData(w, map[string]interface{}{
			"vacations": vacations,
			"count":     len(vacations),
		})
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		http.Error(w, "analyst or start and end query parameters are required", http.StatusBadRequest)
		return
	}
	approvedOnly := r.URL.Query().Get("approved") == "true"

	vacations, err := h.vacations.ListOverlapping(start, end, approvedOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list vacations")
		http.Error(w, "Failed to list vacations", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"vacations": vacations,
		"count":     len(vacations),
	})
}

// HandleCreateVacation handles POST /api/vacations
func (h *Handler) HandleCreateVacation(w http.ResponseWriter, r *http.Request) {
	var vacation domain.Vacation
	if err := json.NewDecoder(r.Body).Decode(&vacation); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if vacation.AnalystID == "" || vacation.StartDate == "" || vacation.EndDate == "" {
		http.Error(w, "analyst_id, start_date and end_date are required", http.StatusBadRequest)
		return
	}

	created, err := h.vacations.Create(vacation)
	if err != nil {
		if domain.KindOf(err) == domain.KindConfig {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", vacation.AnalystID).Msg("Failed to create vacation")
		http.Error(w, "Failed to create vacation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSetVacationApproval handles PUT /api/vacations/{id}/approval
func (h *Handler) HandleSetVacationApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.vacations.SetApproval(id, body.Approved); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Vacation not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("vacation_id", id).Msg("Failed to update vacation")
		http.Error(w, "Failed to update vacation", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"id": id, "is_approved": body.Approved})
}

// HandleDeleteVacation handles DELETE /api/vacations/{id}
func (h *Handler) HandleDeleteVacation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.vacations.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Vacation not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("vacation_id", id).Msg("Failed to delete vacation")
		http.Error(w, "Failed to delete vacation", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"id": id, "deleted": true})
}

// HandleListAbsences handles GET /api/absences. Requires start and end; an
// optional analyst parameter narrows the window to one analyst.
func (h *Handler) HandleListAbsences(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		http.Error(w, "start and end query parameters are required", http.StatusBadRequest)
		return
	}

	var absences []domain.Absence
	var err error
	if analystID := r.URL.Query().Get("analyst"); analystID != "" {
		absences, err = h.absences.ListByAnalystRange(analystID, start, end)
	} else {
		absences, err = h.absences.ListByRange(start, end)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list absences")
		http.Error(w, "Failed to list absences", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"absences": absences,
		"count":    len(absences),
	})
}

// HandleCreateAbsence handles POST /api/absences
func (h *Handler) HandleCreateAbsence(w http.ResponseWriter, r *http.Request) {
	var record domain.Absence
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if record.AnalystID == "" || record.Date == "" {
		http.Error(w, "analyst_id and date are required", http.StatusBadRequest)
		return
	}

	created, err := h.absences.Create(record)
	if err != nil {
		h.log.Error().Err(err).Str("analyst_id", record.AnalystID).Msg("Failed to create absence")
		http.Error(w, "Failed to create absence", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": created,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteAbsence handles DELETE /api/absences/{id}
func (h *Handler) HandleDeleteAbsence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.absences.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Absence not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("absence_id", id).Msg("Failed to delete absence")
		http.Error(w, "Failed to delete absence", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{"id": id, "deleted": true})
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
