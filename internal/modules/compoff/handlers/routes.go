package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all comp-off routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compoff", func(r chi.Router) {
		r.Route("/balances", func(r chi.Router) {
			r.Get("/", h.HandleListBalances)
			r.Get("/{analystId}", h.HandleGetBalance)
			r.Put("/{analystId}", h.HandleUpdateBalance)
			r.Get("/{analystId}/verify", h.HandleVerifyBalance)
			r.Get("/{analystId}/transactions", h.HandleListTransactions)
		})

		r.Post("/credit", h.HandleCredit)
		r.Post("/debit", h.HandleDebit)

		r.Route("/transactions", func(r chi.Router) {
			r.Put("/{id}", h.HandleUpdateTransaction)
			r.Delete("/{id}", h.HandleDeleteTransaction)
		})
	})
}
