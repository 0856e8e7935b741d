package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers vacation and absence routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/vacations", func(r chi.Router) {
		r.Get("/", h.HandleListVacations)
		r.Post("/", h.HandleCreateVacation)
		r.Put("/{id}/approval", h.HandleSetVacationApproval)
		r.Delete("/{id}", h.HandleDeleteVacation)
	})

	r.Route("/absences", func(r chi.Router) {
		r.Get("/", h.HandleListAbsences)
		r.Post("/", h.HandleCreateAbsence)
		r.Delete("/{id}", h.HandleDeleteAbsence)
	})
}
