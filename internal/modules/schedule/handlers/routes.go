package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all schedule routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Get("/", h.HandleListSchedules)
		r.Delete("/", h.HandleDeleteSchedule)
		r.Post("/generate", h.HandleGenerate)

		r.Get("/generation-log", h.HandleListGenerationLog)
		r.Get("/generation-log/{runID}", h.HandleGetGenerationRun)

		r.Route("/swaps", func(r chi.Router) {
			r.Post("/validate", h.HandleValidateSwap)
			r.Post("/validate-range", h.HandleValidateRangeSwap)
		})
	})

	// Rotation state lives at the top level next to /rotation/statistics,
	// which the statistics module registers on the same router.
	r.Get("/rotation/state", h.HandleGetRotationState)
	r.Post("/rotation/reset", h.HandleResetRotation)
}
