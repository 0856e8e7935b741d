package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all statistics routes. The rotation statistics
// endpoint sits under /rotation next to the state and reset endpoints the
// schedule module registers on the same router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rotation/statistics", h.HandleRotationStatistics)

	r.Route("/statistics", func(r chi.Router) {
		r.Get("/fairness-history", h.HandleFairnessHistory)
	})
}
