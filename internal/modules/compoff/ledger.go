// Package compoff keeps the compensatory time-off ledger. The transaction
// table is the source of truth: balances are materialized sums and change
// only together with a transaction row inside one database transaction, so
// the invariant earned - used == sum(amounts) survives every operation.
package compoff

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/database"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
)

// systemPerformer tags ledger writes made by the engine rather than a person
const systemPerformer = "system"

// Audit actions recorded alongside mutations
const (
	auditCreate        = "CREATE"
	auditDelete        = "DELETE"
	auditUpdate        = "UPDATE"
	auditAdminOverride = "ADMIN_OVERRIDE"
)

// Ledger owns every comp-off mutation against ledger.db
type Ledger struct {
	db  *sql.DB
	bus *events.Bus
	log zerolog.Logger
}

// NewLedger creates the comp-off ledger service. The event bus may be nil in
// contexts that do not publish events.
func NewLedger(db *sql.DB, bus *events.Bus, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:  db,
		bus: bus,
		log: log.With().Str("service", "compoff").Logger(),
	}
}

// GetBalance returns the analyst's balance. Analysts with no ledger activity
// report a zero-valued balance rather than an error.
func (l *Ledger) GetBalance(analystID string) (*domain.CompOffBalance, error) {
	rows, err := l.db.Query(
		"SELECT id, analyst_id, earned_units, used_units, updated_at FROM compoff_balances WHERE analyst_id = ?",
		analystID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return &domain.CompOffBalance{AnalystID: analystID}, nil
	}
	balance, err := scanBalance(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan balance: %w", err)
	}
	return &balance, nil
}

// ListBalances returns every balance ordered by analyst id
func (l *Ledger) ListBalances() ([]domain.CompOffBalance, error) {
	rows, err := l.db.Query(
		"SELECT id, analyst_id, earned_units, used_units, updated_at FROM compoff_balances ORDER BY analyst_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.CompOffBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

// ListTransactions returns an analyst's ledger entries newest first. A limit
// of zero or less returns everything.
func (l *Ledger) ListTransactions(analystID string, limit int) ([]domain.CompOffTransaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.Query(
		`SELECT t.id, t.balance_id, t.amount, t.reason, t.constraint_id, t.absence_id, t.created_at
		 FROM compoff_transactions t
		 JOIN compoff_balances b ON t.balance_id = b.id
		 WHERE b.analyst_id = ?
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT ?`,
		analystID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.CompOffTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// GetTransaction returns one ledger entry, or nil when it does not exist
func (l *Ledger) GetTransaction(txID string) (*domain.CompOffTransaction, error) {
	rows, err := l.db.Query(
		`SELECT id, balance_id, amount, reason, constraint_id, absence_id, created_at
		 FROM compoff_transactions WHERE id = ?`,
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	t, err := scanTransaction(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

// CreditFromConstraint appends a positive transaction and raises earned
// units. refID links the credit to the constraint, run or event that earned
// it; reason is WEEKEND or HOLIDAY for automatic pattern credits.
func (l *Ledger) CreditFromConstraint(analystID, refID string, units int, reason string) (*domain.CompOffTransaction, error) {
	if units <= 0 {
		return nil, domain.NewDataIntegrityError(fmt.Sprintf("credit units must be positive, got %d", units))
	}

	transaction := &domain.CompOffTransaction{
		ID:           uuid.NewString(),
		Amount:       units,
		Reason:       reason,
		ConstraintID: refID,
	}

	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		balance, err := getOrCreateBalance(tx, analystID)
		if err != nil {
			return err
		}
		transaction.BalanceID = balance.ID

		if err := insertTransaction(tx, transaction); err != nil {
			return err
		}
		if err := setBalance(tx, balance.ID, balance.Earned+units, balance.Used); err != nil {
			return err
		}
		return writeAudit(tx, auditCreate, transaction.ID, systemPerformer,
			fmt.Sprintf("credit %d %s for %s", units, reason, analystID))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("analyst_id", analystID).
		Str("reason", reason).
		Int("units", units).
		Msg("Comp-off credited")
	l.emit(&events.CompOffCreditedData{AnalystID: analystID, Reason: reason, Amount: units})
	return transaction, nil
}

// DebitForAbsence appends a negative transaction and raises used units.
// Debits exceeding the available balance fail with ErrInsufficientBalance
// and write nothing.
func (l *Ledger) DebitForAbsence(analystID, absenceID string, units int) (*domain.CompOffTransaction, error) {
	if units <= 0 {
		return nil, domain.NewDataIntegrityError(fmt.Sprintf("debit units must be positive, got %d", units))
	}

	transaction := &domain.CompOffTransaction{
		ID:        uuid.NewString(),
		Amount:    -units,
		Reason:    domain.ReasonCompOffUsed,
		AbsenceID: absenceID,
	}

	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		balance, err := getOrCreateBalance(tx, analystID)
		if err != nil {
			return err
		}
		if balance.Available() < units {
			return fmt.Errorf("analyst %s has %d units, needs %d: %w",
				analystID, balance.Available(), units, domain.ErrInsufficientBalance)
		}
		transaction.BalanceID = balance.ID

		if err := insertTransaction(tx, transaction); err != nil {
			return err
		}
		if err := setBalance(tx, balance.ID, balance.Earned, balance.Used+units); err != nil {
			return err
		}
		return writeAudit(tx, auditCreate, transaction.ID, systemPerformer,
			fmt.Sprintf("debit %d for absence %s of %s", units, absenceID, analystID))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("analyst_id", analystID).
		Str("absence_id", absenceID).
		Int("units", units).
		Msg("Comp-off debited")
	l.emit(&events.CompOffDebitedData{AnalystID: analystID, AbsenceID: absenceID, Amount: units})
	return transaction, nil
}

// UpdateBalance reconciles a balance to explicit targets. A nil target keeps
// the current value. The net change lands as one signed transaction so the
// ledger sum still equals earned minus used afterwards.
func (l *Ledger) UpdateBalance(analystID, performer string, targetEarned, targetUsed *int, reason string) (*domain.CompOffBalance, error) {
	if reason == "" {
		reason = domain.ReasonManualAdjustment
	}

	var result domain.CompOffBalance
	var amount int

	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		balance, err := getOrCreateBalance(tx, analystID)
		if err != nil {
			return err
		}

		earned, used := balance.Earned, balance.Used
		if targetEarned != nil {
			earned = *targetEarned
		}
		if targetUsed != nil {
			used = *targetUsed
		}
		if earned < 0 || used < 0 {
			return domain.NewDataIntegrityError(
				fmt.Sprintf("balance targets must be non-negative, got earned=%d used=%d", earned, used))
		}

		amount = (earned - used) - (balance.Earned - balance.Used)
		transactionID := ""
		if amount != 0 {
			transaction := &domain.CompOffTransaction{
				ID:        uuid.NewString(),
				BalanceID: balance.ID,
				Amount:    amount,
				Reason:    reason,
			}
			if err := insertTransaction(tx, transaction); err != nil {
				return err
			}
			transactionID = transaction.ID
		}

		if err := setBalance(tx, balance.ID, earned, used); err != nil {
			return err
		}

		result = domain.CompOffBalance{ID: balance.ID, AnalystID: analystID, Earned: earned, Used: used}
		return writeAudit(tx, auditAdminOverride, transactionID, performer,
			fmt.Sprintf("balance %s set to earned=%d used=%d (was earned=%d used=%d)",
				analystID, earned, used, balance.Earned, balance.Used))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("analyst_id", analystID).
		Str("performer", performer).
		Int("earned", result.Earned).
		Int("used", result.Used).
		Int("adjustment", amount).
		Msg("Comp-off balance adjusted")
	l.emit(&events.BalanceAdjustedData{
		AnalystID: analystID,
		Performer: performer,
		Amount:    amount,
		Earned:    result.Earned,
		Used:      result.Used,
	})
	return &result, nil
}

// DeleteTransaction reverses a transaction's effect on the balance and
// removes the row, leaving an audit record in its place.
func (l *Ledger) DeleteTransaction(txID, performer string) error {
	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		transaction, balance, err := getTransactionWithBalance(tx, txID)
		if err != nil {
			return err
		}

		earned, used := reverseEffect(balance.Earned, balance.Used, transaction.Amount)
		if err := setBalance(tx, balance.ID, earned, used); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM compoff_transactions WHERE id = ?", txID); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		return writeAudit(tx, auditDelete, txID, performer,
			fmt.Sprintf("removed %+d %s", transaction.Amount, transaction.Reason))
	})
	if err != nil {
		return err
	}

	l.log.Info().Str("transaction_id", txID).Str("performer", performer).Msg("Comp-off transaction deleted")
	return nil
}

// UpdateTransaction rewrites a transaction's amount and reason. The prior
// effect is reversed and the new one applied in the same atomic unit.
func (l *Ledger) UpdateTransaction(txID string, newAmount int, newReason, performer string) (*domain.CompOffTransaction, error) {
	if newAmount == 0 {
		return nil, domain.NewDataIntegrityError("transaction amount cannot be zero")
	}

	var updated domain.CompOffTransaction
	err := database.WithTransaction(l.db, func(tx *sql.Tx) error {
		transaction, balance, err := getTransactionWithBalance(tx, txID)
		if err != nil {
			return err
		}

		earned, used := reverseEffect(balance.Earned, balance.Used, transaction.Amount)
		if newAmount > 0 {
			earned += newAmount
		} else {
			used += -newAmount
		}
		if err := setBalance(tx, balance.ID, earned, used); err != nil {
			return err
		}

		if newReason == "" {
			newReason = transaction.Reason
		}
		if _, err := tx.Exec(
			"UPDATE compoff_transactions SET amount = ?, reason = ? WHERE id = ?",
			newAmount, newReason, txID,
		); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		updated = *transaction
		updated.Amount = newAmount
		updated.Reason = newReason
		return writeAudit(tx, auditUpdate, txID, performer,
			fmt.Sprintf("amount %+d %s -> %+d %s", transaction.Amount, transaction.Reason, newAmount, newReason))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("transaction_id", txID).Str("performer", performer).Msg("Comp-off transaction updated")
	return &updated, nil
}

// LedgerVerification reports the integrity check for one balance
type LedgerVerification struct {
	AnalystID  string `json:"analyst_id"`
	Earned     int    `json:"earned_units"`
	Used       int    `json:"used_units"`
	TxSum      int    `json:"transaction_sum"`
	Consistent bool   `json:"consistent"`
}

// VerifyLedger checks that the transaction sum explains the balance
func (l *Ledger) VerifyLedger(analystID string) (*LedgerVerification, error) {
	verification := &LedgerVerification{AnalystID: analystID, Consistent: true}

	rows, err := l.db.Query(
		`SELECT b.earned_units, b.used_units, COALESCE(SUM(t.amount), 0)
		 FROM compoff_balances b
		 LEFT JOIN compoff_transactions t ON t.balance_id = b.id
		 WHERE b.analyst_id = ?
		 GROUP BY b.id`,
		analystID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ledger: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return verification, nil
	}
	if err := rows.Scan(&verification.Earned, &verification.Used, &verification.TxSum); err != nil {
		return nil, fmt.Errorf("failed to scan verification: %w", err)
	}

	verification.Consistent = verification.TxSum == verification.Earned-verification.Used
	if !verification.Consistent {
		l.log.Error().
			Str("analyst_id", analystID).
			Int("earned", verification.Earned).
			Int("used", verification.Used).
			Int("tx_sum", verification.TxSum).
			Msg("Comp-off ledger inconsistent")
	}
	return verification, nil
}

func (l *Ledger) emit(data events.EventData) {
	if l.bus != nil {
		l.bus.Emit("compoff", data)
	}
}

// reverseEffect undoes one transaction's contribution to a balance
func reverseEffect(earned, used, amount int) (int, int) {
	if amount > 0 {
		return earned - amount, used
	}
	return earned, used - (-amount)
}

func getOrCreateBalance(tx *sql.Tx, analystID string) (*domain.CompOffBalance, error) {
	rows, err := tx.Query(
		"SELECT id, analyst_id, earned_units, used_units, updated_at FROM compoff_balances WHERE analyst_id = ?",
		analystID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		return &balance, nil
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	balance := &domain.CompOffBalance{ID: uuid.NewString(), AnalystID: analystID}
	_, err = tx.Exec(
		"INSERT INTO compoff_balances (id, analyst_id, earned_units, used_units) VALUES (?, ?, 0, 0)",
		balance.ID, analystID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}
	return balance, nil
}

func setBalance(tx *sql.Tx, balanceID string, earned, used int) error {
	_, err := tx.Exec(
		"UPDATE compoff_balances SET earned_units = ?, used_units = ?, updated_at = datetime('now') WHERE id = ?",
		earned, used, balanceID,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func insertTransaction(tx *sql.Tx, t *domain.CompOffTransaction) error {
	_, err := tx.Exec(
		`INSERT INTO compoff_transactions (id, balance_id, amount, reason, constraint_id, absence_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.BalanceID, t.Amount, t.Reason, nullable(t.ConstraintID), nullable(t.AbsenceID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func getTransactionWithBalance(tx *sql.Tx, txID string) (*domain.CompOffTransaction, *domain.CompOffBalance, error) {
	rows, err := tx.Query(
		`SELECT t.id, t.balance_id, t.amount, t.reason, t.constraint_id, t.absence_id, t.created_at,
		        b.id, b.analyst_id, b.earned_units, b.used_units, b.updated_at
		 FROM compoff_transactions t
		 JOIN compoff_balances b ON t.balance_id = b.id
		 WHERE t.id = ?`,
		txID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil, fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
	}

	var t domain.CompOffTransaction
	var b domain.CompOffBalance
	var constraintID, absenceID, txCreated, balUpdated sql.NullString
	if err := rows.Scan(
		&t.ID, &t.BalanceID, &t.Amount, &t.Reason, &constraintID, &absenceID, &txCreated,
		&b.ID, &b.AnalystID, &b.Earned, &b.Used, &balUpdated,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	t.ConstraintID = constraintID.String
	t.AbsenceID = absenceID.String
	t.CreatedAt = parseTimestamp(txCreated)
	b.UpdatedAt = parseTimestamp(balUpdated)
	return &t, &b, nil
}

func writeAudit(tx *sql.Tx, action, transactionID, performer, detail string) error {
	_, err := tx.Exec(
		"INSERT INTO compoff_audit (action, transaction_id, performer, detail) VALUES (?, ?, ?, ?)",
		action, nullable(transactionID), performer, detail,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

func scanBalance(rows *sql.Rows) (domain.CompOffBalance, error) {
	var b domain.CompOffBalance
	var updatedAt sql.NullString
	if err := rows.Scan(&b.ID, &b.AnalystID, &b.Earned, &b.Used, &updatedAt); err != nil {
		return domain.CompOffBalance{}, err
	}
	b.UpdatedAt = parseTimestamp(updatedAt)
	return b, nil
}

func scanTransaction(rows *sql.Rows) (domain.CompOffTransaction, error) {
	var t domain.CompOffTransaction
	var constraintID, absenceID, createdAt sql.NullString
	if err := rows.Scan(&t.ID, &t.BalanceID, &t.Amount, &t.Reason, &constraintID, &absenceID, &createdAt); err != nil {
		return domain.CompOffTransaction{}, err
	}
	t.ConstraintID = constraintID.String
	t.AbsenceID = absenceID.String
	t.CreatedAt = parseTimestamp(createdAt)
	return t, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// parseTimestamp reads the TEXT timestamps SQLite's datetime('now') writes.
// Unparseable values report the zero time.
func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t
		}
	}
	return time.Time{}
}
