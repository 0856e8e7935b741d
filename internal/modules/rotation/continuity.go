package rotation

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// ContinuityRepository persists the last weekend pattern each analyst closed.
// The engine loads the full map at generation start and writes updated
// records together with the schedules it persists.
type ContinuityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewContinuityRepository creates a new pattern continuity repository
func NewContinuityRepository(db *sql.DB, log zerolog.Logger) *ContinuityRepository {
	return &ContinuityRepository{
		db:  db,
		log: log.With().Str("repo", "continuity").Logger(),
	}
}

// GetAll returns every continuity record keyed by analyst id
func (r *ContinuityRepository) GetAll() (map[string]domain.PatternContinuityRecord, error) {
	rows, err := r.db.Query(
		"SELECT analyst_id, last_pattern, last_end_date, updated_at FROM pattern_continuity",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern continuity: %w", err)
	}
	defer rows.Close()

	records := make(map[string]domain.PatternContinuityRecord)
	for rows.Next() {
		var rec domain.PatternContinuityRecord
		var pattern string
		var updatedAt sql.NullString
		if err := rows.Scan(&rec.AnalystID, &pattern, &rec.LastEndDate, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern continuity: %w", err)
		}
		rec.LastPattern = domain.WeekendPattern(pattern)
		rec.UpdatedAt = parseTimestamp(updatedAt)
		records[rec.AnalystID] = rec
	}
	return records, rows.Err()
}

// Upsert writes one continuity record
func (r *ContinuityRepository) Upsert(rec domain.PatternContinuityRecord) error {
	return upsertContinuity(r.db, rec)
}

// UpsertTx is Upsert inside a caller-owned transaction
func (r *ContinuityRepository) UpsertTx(tx *sql.Tx, rec domain.PatternContinuityRecord) error {
	return upsertContinuity(tx, rec)
}

func upsertContinuity(ex execer, rec domain.PatternContinuityRecord) error {
	_, err := ex.Exec(
		`INSERT INTO pattern_continuity (analyst_id, last_pattern, last_end_date, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(analyst_id) DO UPDATE SET
		   last_pattern = excluded.last_pattern,
		   last_end_date = excluded.last_end_date,
		   updated_at = excluded.updated_at`,
		rec.AnalystID, string(rec.LastPattern), rec.LastEndDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern continuity: %w", err)
	}
	return nil
}

// GapAllowed reports whether an analyst may take weekend duty again when
// their previous weekend day was gap days earlier. A gap of one day is the
// Sat->Sun boundary of back-to-back patterns and a gap of six days is the
// Sun->Sat hand-off from SUN_THU into TUE_SAT; both are deliberate pattern
// transitions. Anything else must wait out the minimum gap.
func GapAllowed(gap, minGap int) bool {
	if gap == 1 || gap == 6 {
		return true
	}
	return gap >= minGap
}
