package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all roster routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/roster", func(r chi.Router) {
		r.Route("/regions", func(r chi.Router) {
			r.Get("/", h.HandleListRegions)
			r.Post("/", h.HandleCreateRegion)
			r.Get("/{id}", h.HandleGetRegion)
			r.Put("/{id}/active", h.HandleSetRegionActive)
			r.Get("/{id}/shifts", h.HandleListShifts)
			r.Post("/{id}/shifts", h.HandleCreateShift)
			r.Get("/{id}/analysts", h.HandleListAnalysts)
			r.Get("/{id}/holidays", h.HandleListHolidays)
			r.Post("/{id}/holidays", h.HandleCreateHoliday)
		})

		r.Route("/analysts", func(r chi.Router) {
			r.Post("/", h.HandleCreateAnalyst)
			r.Get("/{id}", h.HandleGetAnalyst)
			r.Put("/{id}", h.HandleUpdateAnalyst)
			r.Delete("/{id}", h.HandleDeactivateAnalyst)
		})
	})
}
