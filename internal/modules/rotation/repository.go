package rotation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/shiftops/rosterd/internal/domain"
)

// rotationColumns is the column list for the rotation_state table
const rotationColumns = `algorithm_name, shift_type, week1_analyst, week1_start_date,
week2_analyst, week2_start_date, available_pool, completed_pool, cycle_generation, version, updated_at`

// Repository persists rotation state in roster.db. Pools are stored as
// msgpack blobs and Save is compare-and-set on the version column, so two
// overlapping generations can never silently clobber each other's pools.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new rotation state repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "rotation").Logger(),
	}
}

// Get returns the persisted state for one (algorithm, shift type) pair, or
// nil when the rotation has never been initialized.
func (r *Repository) Get(algorithmName, shiftType string) (*domain.RotationState, error) {
	rows, err := r.db.Query(
		"SELECT "+rotationColumns+" FROM rotation_state WHERE algorithm_name = ? AND shift_type = ?",
		algorithmName, shiftType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	state, err := scanState(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rotation state: %w", err)
	}
	return &state, nil
}

// List returns every persisted state for an algorithm, keyed by shift type
func (r *Repository) List(algorithmName string) (map[string]domain.RotationState, error) {
	rows, err := r.db.Query(
		"SELECT "+rotationColumns+" FROM rotation_state WHERE algorithm_name = ? ORDER BY shift_type",
		algorithmName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rotation states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]domain.RotationState)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rotation state: %w", err)
		}
		states[state.ShiftType] = state
	}
	return states, rows.Err()
}

// Save writes the state with optimistic concurrency. Version zero inserts a
// fresh row; any other version updates only while the stored version still
// matches. A lost race reports domain.ErrStaleRotationState and leaves the
// row untouched. On success the in-memory Version advances to the stored one.
func (r *Repository) Save(state *domain.RotationState) error {
	return r.save(r.db, state)
}

// SaveTx is Save inside a caller-owned transaction
func (r *Repository) SaveTx(tx *sql.Tx, state *domain.RotationState) error {
	return r.save(tx, state)
}

// Reset removes the persisted state so the next generation reinitializes the
// pools from scratch. Missing rows are not an error.
func (r *Repository) Reset(algorithmName, shiftType string) error {
	_, err := r.db.Exec(
		"DELETE FROM rotation_state WHERE algorithm_name = ? AND shift_type = ?",
		algorithmName, shiftType,
	)
	if err != nil {
		return fmt.Errorf("failed to reset rotation state: %w", err)
	}

	r.log.Info().
		Str("algorithm", algorithmName).
		Str("shift_type", shiftType).
		Msg("Rotation state reset")
	return nil
}

// ResetAll removes every persisted state for an algorithm
func (r *Repository) ResetAll(algorithmName string) error {
	_, err := r.db.Exec("DELETE FROM rotation_state WHERE algorithm_name = ?", algorithmName)
	if err != nil {
		return fmt.Errorf("failed to reset rotation states: %w", err)
	}

	r.log.Info().Str("algorithm", algorithmName).Msg("All rotation state reset")
	return nil
}

// execer covers *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (r *Repository) save(ex execer, state *domain.RotationState) error {
	available, err := encodePool(state.AvailablePool)
	if err != nil {
		return fmt.Errorf("failed to encode available pool: %w", err)
	}
	completed, err := encodePool(state.CompletedPool)
	if err != nil {
		return fmt.Errorf("failed to encode completed pool: %w", err)
	}

	if state.Version == 0 {
		var existing int
		err := ex.QueryRow(
			"SELECT COUNT(*) FROM rotation_state WHERE algorithm_name = ? AND shift_type = ?",
			state.AlgorithmName, state.ShiftType,
		).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check rotation state: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("rotation state %s/%s already exists: %w",
				state.AlgorithmName, state.ShiftType, domain.ErrStaleRotationState)
		}

		_, err = ex.Exec(
			`INSERT INTO rotation_state (algorithm_name, shift_type, week1_analyst, week1_start_date,
			 week2_analyst, week2_start_date, available_pool, completed_pool, cycle_generation, version, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, datetime('now'))`,
			state.AlgorithmName, state.ShiftType,
			state.Week1Analyst, state.Week1StartDate,
			state.Week2Analyst, state.Week2StartDate,
			available, completed, state.CycleGeneration,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rotation state: %w", err)
		}
		state.Version = 1
		return nil
	}

	res, err := ex.Exec(
		`UPDATE rotation_state SET week1_analyst = ?, week1_start_date = ?,
		 week2_analyst = ?, week2_start_date = ?, available_pool = ?, completed_pool = ?,
		 cycle_generation = ?, version = version + 1, updated_at = datetime('now')
		 WHERE algorithm_name = ? AND shift_type = ? AND version = ?`,
		state.Week1Analyst, state.Week1StartDate,
		state.Week2Analyst, state.Week2StartDate,
		available, completed, state.CycleGeneration,
		state.AlgorithmName, state.ShiftType, state.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update rotation state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rotation state %s/%s version %d: %w",
			state.AlgorithmName, state.ShiftType, state.Version, domain.ErrStaleRotationState)
	}
	state.Version++
	return nil
}

func scanState(rows *sql.Rows) (domain.RotationState, error) {
	var s domain.RotationState
	var week1, week1Start, week2, week2Start sql.NullString
	var available, completed []byte
	var updatedAt sql.NullString

	if err := rows.Scan(
		&s.AlgorithmName, &s.ShiftType, &week1, &week1Start, &week2, &week2Start,
		&available, &completed, &s.CycleGeneration, &s.Version, &updatedAt,
	); err != nil {
		return domain.RotationState{}, err
	}

	s.Week1Analyst = week1.String
	s.Week1StartDate = week1Start.String
	s.Week2Analyst = week2.String
	s.Week2StartDate = week2Start.String
	s.UpdatedAt = parseTimestamp(updatedAt)

	var err error
	if s.AvailablePool, err = decodePool(available); err != nil {
		return domain.RotationState{}, fmt.Errorf("available pool: %w", err)
	}
	if s.CompletedPool, err = decodePool(completed); err != nil {
		return domain.RotationState{}, fmt.Errorf("completed pool: %w", err)
	}
	return s, nil
}

func encodePool(pool []string) ([]byte, error) {
	if pool == nil {
		pool = []string{}
	}
	return msgpack.Marshal(pool)
}

func decodePool(blob []byte) ([]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var pool []string
	if err := msgpack.Unmarshal(blob, &pool); err != nil {
		return nil, err
	}
	return pool, nil
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
