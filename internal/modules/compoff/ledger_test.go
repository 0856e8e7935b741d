package compoff

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
)

// testSchema creates the ledger tables needed for testing
const testSchema = `
CREATE TABLE compoff_balances (
    id TEXT PRIMARY KEY,
    analyst_id TEXT NOT NULL UNIQUE,
    earned_units INTEGER NOT NULL DEFAULT 0,
    used_units INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE compoff_transactions (
    id TEXT PRIMARY KEY,
    balance_id TEXT NOT NULL REFERENCES compoff_balances(id),
    amount INTEGER NOT NULL,
    reason TEXT NOT NULL,
    constraint_id TEXT,
    absence_id TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE compoff_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    transaction_id TEXT,
    performer TEXT NOT NULL,
    detail TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

func setupLedger(t *testing.T) *Ledger {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return NewLedger(db, nil, zerolog.Nop())
}

func requireConsistent(t *testing.T, ledger *Ledger, analystID string) {
	t.Helper()
	verification, err := ledger.VerifyLedger(analystID)
	require.NoError(t, err)
	assert.True(t, verification.Consistent,
		"ledger sum %d must equal earned %d - used %d",
		verification.TxSum, verification.Earned, verification.Used)
}

func TestLedger_CreditFromConstraint(t *testing.T) {
	ledger := setupLedger(t)

	transaction, err := ledger.CreditFromConstraint("a1", "run-1", 1, domain.ReasonWeekend)
	require.NoError(t, err)
	assert.Equal(t, 1, transaction.Amount)
	assert.Equal(t, domain.ReasonWeekend, transaction.Reason)
	assert.Equal(t, "run-1", transaction.ConstraintID)

	balance, err := ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Earned)
	assert.Equal(t, 0, balance.Used)
	assert.Equal(t, 1, balance.Available())

	requireConsistent(t, ledger, "a1")
}

func TestLedger_CreditRejectsNonPositiveUnits(t *testing.T) {
	ledger := setupLedger(t)

	_, err := ledger.CreditFromConstraint("a1", "run-1", 0, domain.ReasonWeekend)
	require.Error(t, err)
	assert.Equal(t, domain.KindDataIntegrity, domain.KindOf(err))
}

func TestLedger_DebitForAbsence(t *testing.T) {
	ledger := setupLedger(t)

	_, err := ledger.CreditFromConstraint("a1", "run-1", 2, domain.ReasonWeekend)
	require.NoError(t, err)

	transaction, err := ledger.DebitForAbsence("a1", "abs-1", 1)
	require.NoError(t, err)
	assert.Equal(t, -1, transaction.Amount)
	assert.Equal(t, domain.ReasonCompOffUsed, transaction.Reason)
	assert.Equal(t, "abs-1", transaction.AbsenceID)

	balance, err := ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Earned)
	assert.Equal(t, 1, balance.Used)
	assert.Equal(t, 1, balance.Available())

	requireConsistent(t, ledger, "a1")
}

func TestLedger_DebitInsufficientBalance(t *testing.T) {
	ledger := setupLedger(t)

	_, err := ledger.CreditFromConstraint("a1", "run-1", 1, domain.ReasonWeekend)
	require.NoError(t, err)

	_, err = ledger.DebitForAbsence("a1", "abs-1", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// nothing was written
	balance, err := ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Earned)
	assert.Equal(t, 0, balance.Used)

	transactions, err := ledger.ListTransactions("a1", 0)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
	requireConsistent(t, ledger, "a1")
}

func TestLedger_UpdateBalanceReconciles(t *testing.T) {
	ledger := setupLedger(t)

	// bring the balance to earned=3, used=1
	_, err := ledger.CreditFromConstraint("a1", "run-1", 3, domain.ReasonWeekend)
	require.NoError(t, err)
	_, err = ledger.DebitForAbsence("a1", "abs-1", 1)
	require.NoError(t, err)

	earned, used := 5, 2
	balance, err := ledger.UpdateBalance("a1", "ops-admin", &earned, &used, "")
	require.NoError(t, err)
	assert.Equal(t, 5, balance.Earned)
	assert.Equal(t, 2, balance.Used)

	// the reconciling entry is (5-2) - (3-1) = +1
	transactions, err := ledger.ListTransactions("a1", 1)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, 1, transactions[0].Amount)
	assert.Equal(t, domain.ReasonManualAdjustment, transactions[0].Reason)

	requireConsistent(t, ledger, "a1")
}

func TestLedger_UpdateBalanceNoNetChange(t *testing.T) {
	ledger := setupLedger(t)

	_, err := ledger.CreditFromConstraint("a1", "run-1", 2, domain.ReasonHoliday)
	require.NoError(t, err)

	// (4-2) == (2-0): the shift is pure relabeling, no transaction needed
	earned, used := 4, 2
	balance, err := ledger.UpdateBalance("a1", "ops-admin", &earned, &used, "")
	require.NoError(t, err)
	assert.Equal(t, 4, balance.Earned)
	assert.Equal(t, 2, balance.Used)

	transactions, err := ledger.ListTransactions("a1", 0)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
	requireConsistent(t, ledger, "a1")
}

func TestLedger_UpdateBalancePartialTargets(t *testing.T) {
	ledger := setupLedger(t)

	_, err := ledger.CreditFromConstraint("a1", "run-1", 3, domain.ReasonWeekend)
	require.NoError(t, err)

	used := 1
	balance, err := ledger.UpdateBalance("a1", "ops-admin", nil, &used, "")
	require.NoError(t, err)
	assert.Equal(t, 3, balance.Earned)
	assert.Equal(t, 1, balance.Used)
	requireConsistent(t, ledger, "a1")
}

func TestLedger_UpdateBalanceRejectsNegativeTargets(t *testing.T) {
	ledger := setupLedger(t)

	earned := -1
	_, err := ledger.UpdateBalance("a1", "ops-admin", &earned, nil, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindDataIntegrity, domain.KindOf(err))
}

func TestLedger_DeleteTransactionReversesEffect(t *testing.T) {
	ledger := setupLedger(t)

	credit, err := ledger.CreditFromConstraint("a1", "run-1", 2, domain.ReasonWeekend)
	require.NoError(t, err)
	debit, err := ledger.DebitForAbsence("a1", "abs-1", 1)
	require.NoError(t, err)

	require.NoError(t, ledger.DeleteTransaction(debit.ID, "ops-admin"))
	balance, err := ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Earned)
	assert.Equal(t, 0, balance.Used)
	requireConsistent(t, ledger, "a1")

	require.NoError(t, ledger.DeleteTransaction(credit.ID, "ops-admin"))
	balance, err = ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Earned)
	assert.Equal(t, 0, balance.Used)
	requireConsistent(t, ledger, "a1")
}

func TestLedger_DeleteMissingTransaction(t *testing.T) {
	ledger := setupLedger(t)

	err := ledger.DeleteTransaction("nope", "ops-admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_UpdateTransactionRewritesEffect(t *testing.T) {
	ledger := setupLedger(t)

	credit, err := ledger.CreditFromConstraint("a1", "run-1", 1, domain.ReasonWeekend)
	require.NoError(t, err)

	updated, err := ledger.UpdateTransaction(credit.ID, 2, domain.ReasonHoliday, "ops-admin")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Amount)
	assert.Equal(t, domain.ReasonHoliday, updated.Reason)

	balance, err := ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Earned)
	assert.Equal(t, 0, balance.Used)
	requireConsistent(t, ledger, "a1")

	// flip the credit into a debit
	updated, err = ledger.UpdateTransaction(credit.ID, -1, "", "ops-admin")
	require.NoError(t, err)
	assert.Equal(t, -1, updated.Amount)

	balance, err = ledger.GetBalance("a1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Earned)
	assert.Equal(t, 1, balance.Used)
	requireConsistent(t, ledger, "a1")
}

func TestLedger_GetBalanceMissingAnalyst(t *testing.T) {
	ledger := setupLedger(t)

	balance, err := ledger.GetBalance("ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", balance.AnalystID)
	assert.Equal(t, 0, balance.Available())
}

func TestLedger_ListTransactionsNewestFirst(t *testing.T) {
	ledger := setupLedger(t)

	for i := 0; i < 3; i++ {
		_, err := ledger.CreditFromConstraint("a1", "run-1", 1, domain.ReasonWeekend)
		require.NoError(t, err)
	}

	transactions, err := ledger.ListTransactions("a1", 2)
	require.NoError(t, err)
	assert.Len(t, transactions, 2)

	all, err := ledger.ListTransactions("a1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLedger_EmitsEvents(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(zerolog.Nop())
	var seen []events.EventType
	bus.SubscribeAll(func(e events.EventWithData) { seen = append(seen, e.Type) })

	ledger := NewLedger(db, bus, zerolog.Nop())
	_, err = ledger.CreditFromConstraint("a1", "run-1", 2, domain.ReasonWeekend)
	require.NoError(t, err)
	_, err = ledger.DebitForAbsence("a1", "abs-1", 1)
	require.NoError(t, err)
	earned := 5
	_, err = ledger.UpdateBalance("a1", "ops-admin", &earned, nil, "")
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.CompOffCredited,
		events.CompOffDebited,
		events.BalanceAdjusted,
	}, seen)
}
