// Package handlers provides HTTP handlers for the comp-off ledger.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/compoff"
)

// Handler handles comp-off HTTP requests
type Handler struct {
	ledger *compoff.Ledger
	log    zerolog.Logger
}

// NewHandler creates a new comp-off handler
func NewHandler(ledger *compoff.Ledger, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		log:    log.With().Str("handler", "compoff").Logger(),
	}
}

// HandleListBalances handles GET /api/compoff/balances
func (h *Handler) HandleListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.ListBalances()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list balances")
		http.Error(w, "Failed to list balances", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"balances": balances,
		"count":    len(balances),
	})
}

// HandleGetBalance handles GET /api/compoff/balances/{analystId}
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	analystID := chi.URLParam(r, "analystId")

	balance, err := h.ledger.GetBalance(analystID)
	if err != nil {
		h.log.Error().Err(err).Str("analyst_id", analystID).Msg("Failed to get balance")
		http.Error(w, "Failed to get balance", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"analyst_id":   balance.AnalystID,
		"earned_units": balance.Earned,
		"used_units":   balance.Used,
		"available":    balance.Available(),
	})
}

// HandleUpdateBalance handles PUT /api/compoff/balances/{analystId}
func (h *Handler) HandleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	analystID := chi.URLParam(r, "analystId")

	var body struct {
		Performer    string `json:"performer"`
		Reason       string `json:"reason"`
		TargetEarned *int   `json:"target_earned"`
		TargetUsed   *int   `json:"target_used"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Performer == "" {
		http.Error(w, "performer is required", http.StatusBadRequest)
		return
	}
	if body.TargetEarned == nil && body.TargetUsed == nil {
		http.Error(w, "target_earned or target_used is required", http.StatusBadRequest)
		return
	}

	balance, err := h.ledger.UpdateBalance(analystID, body.Performer, body.TargetEarned, body.TargetUsed, body.Reason)
	if err != nil {
		if domain.KindOf(err) == domain.KindDataIntegrity {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", analystID).Msg("Failed to update balance")
		http.Error(w, "Failed to update balance", http.StatusInternalServerError)
		return
	}

	h.writeData(w, balance)
}

// HandleVerifyBalance handles GET /api/compoff/balances/{analystId}/verify
func (h *Handler) HandleVerifyBalance(w http.ResponseWriter, r *http.Request) {
	analystID := chi.URLParam(r, "analystId")

	verification, err := h.ledger.VerifyLedger(analystID)
	if err != nil {
		h.log.Error().Err(err).Str("analyst_id", analystID).Msg("Failed to verify ledger")
		http.Error(w, "Failed to verify ledger", http.StatusInternalServerError)
		return
	}

	h.writeData(w, verification)
}

// HandleListTransactions handles GET /api/compoff/balances/{analystId}/transactions
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	analystID := chi.URLParam(r, "analystId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transactions, err := h.ledger.ListTransactions(analystID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("analyst_id", analystID).Msg("Failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// HandleCredit handles POST /api/compoff/credit
func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AnalystID string `json:"analyst_id"`
		RefID     string `json:"ref_id"`
		Reason    string `json:"reason"`
		Units     int    `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.AnalystID == "" {
		http.Error(w, "analyst_id is required", http.StatusBadRequest)
		return
	}
	if body.Reason == "" {
		body.Reason = domain.ReasonManualAdjustment
	}

	transaction, err := h.ledger.CreditFromConstraint(body.AnalystID, body.RefID, body.Units, body.Reason)
	if err != nil {
		if domain.KindOf(err) == domain.KindDataIntegrity {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", body.AnalystID).Msg("Failed to credit comp-off")
		http.Error(w, "Failed to credit comp-off", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": transaction,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDebit handles POST /api/compoff/debit
func (h *Handler) HandleDebit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AnalystID string `json:"analyst_id"`
		AbsenceID string `json:"absence_id"`
		Units     int    `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.AnalystID == "" {
		http.Error(w, "analyst_id is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.ledger.DebitForAbsence(body.AnalystID, body.AbsenceID, body.Units)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if domain.KindOf(err) == domain.KindDataIntegrity {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("analyst_id", body.AnalystID).Msg("Failed to debit comp-off")
		http.Error(w, "Failed to debit comp-off", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": transaction,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleUpdateTransaction handles PUT /api/compoff/transactions/{id}
func (h *Handler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Performer string `json:"performer"`
		Reason    string `json:"reason"`
		Amount    int    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Performer == "" {
		http.Error(w, "performer is required", http.StatusBadRequest)
		return
	}

	transaction, err := h.ledger.UpdateTransaction(id, body.Amount, body.Reason, body.Performer)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		if domain.KindOf(err) == domain.KindDataIntegrity {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		http.Error(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	h.writeData(w, transaction)
}

// HandleDeleteTransaction handles DELETE /api/compoff/transactions/{id}
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	performer := r.URL.Query().Get("performer")
	if performer == "" {
		http.Error(w, "performer is required", http.StatusBadRequest)
		return
	}

	if err := h.ledger.DeleteTransaction(id, performer); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Transaction not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		http.Error(w, "Failed to delete transaction", http.StatusInternalServerError)
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
