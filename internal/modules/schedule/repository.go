package schedule

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// scheduleColumns is the list of columns for the schedules table
const scheduleColumns = `analyst_id, date, shift_type, is_screener, region_id, type`

// Repository handles schedule rows in roster.db. The uniqueness key is
// (analyst_id, date, shift_type); writers choose between skipping and
// overwriting on conflict.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new schedule repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "schedule").Logger(),
	}
}

// GetByRegionRange returns a region's schedules in [start, end] inclusive,
// ordered by date, shift type and analyst id for deterministic iteration.
func (r *Repository) GetByRegionRange(regionID, start, end string) ([]domain.Schedule, error) {
	rows, err := r.db.Query(
		"SELECT "+scheduleColumns+` FROM schedules
		 WHERE region_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, shift_type, analyst_id`,
		regionID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// GetByAnalystRange returns one analyst's schedules in [start, end] inclusive
func (r *Repository) GetByAnalystRange(analystID, start, end string) ([]domain.Schedule, error) {
	rows, err := r.db.Query(
		"SELECT "+scheduleColumns+` FROM schedules
		 WHERE analyst_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, shift_type`,
		analystID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyst schedules: %w", err)
	}
	defer rows.Close()

	return scanSchedules(rows)
}

// UpsertTx writes one schedule inside a caller-owned transaction and reports
// whether a row was inserted or materially changed. With overwrite false a
// conflicting row is left untouched; with overwrite true the row is replaced
// and any row for the same (analyst, date) under a different shift type is
// removed so an analyst never holds two shifts on one day. Re-writing an
// identical row reports false either way, which keeps regeneration of an
// unchanged range from looking like new work.
func (r *Repository) UpsertTx(tx *sql.Tx, s domain.Schedule, overwrite bool) (bool, error) {
	if overwrite {
		if _, err := tx.Exec(
			"DELETE FROM schedules WHERE analyst_id = ? AND date = ? AND shift_type != ?",
			s.AnalystID, s.Date, s.ShiftType,
		); err != nil {
			return false, fmt.Errorf("failed to clear conflicting schedules: %w", err)
		}

		res, err := tx.Exec(
			`INSERT INTO schedules (analyst_id, date, shift_type, is_screener, region_id, type)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(analyst_id, date, shift_type) DO UPDATE SET
			   is_screener = excluded.is_screener,
			   region_id = excluded.region_id,
			   type = excluded.type,
			   updated_at = datetime('now')
			 WHERE schedules.is_screener != excluded.is_screener
			    OR schedules.region_id != excluded.region_id
			    OR schedules.type != excluded.type`,
			s.AnalystID, s.Date, s.ShiftType, boolToInt(s.IsScreener), s.RegionID, string(s.Type),
		)
		if err != nil {
			return false, fmt.Errorf("failed to upsert schedule %s: %w", s.Key(), err)
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	}

	res, err := tx.Exec(
		`INSERT INTO schedules (analyst_id, date, shift_type, is_screener, region_id, type)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(analyst_id, date, shift_type) DO NOTHING`,
		s.AnalystID, s.Date, s.ShiftType, boolToInt(s.IsScreener), s.RegionID, string(s.Type),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert schedule %s: %w", s.Key(), err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes one schedule row
func (r *Repository) Delete(analystID, date, shiftType string) error {
	res, err := r.db.Exec(
		"DELETE FROM schedules WHERE analyst_id = ? AND date = ? AND shift_type = ?",
		analystID, date, shiftType,
	)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %s|%s|%s: %w", analystID, date, shiftType, domain.ErrNotFound)
	}
	return nil
}

// CountByRegionRange returns how many schedule rows exist for a region window
func (r *Repository) CountByRegionRange(regionID, start, end string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM schedules WHERE region_id = ? AND date >= ? AND date <= ?",
		regionID, start, end,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

func scanSchedules(rows *sql.Rows) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for rows.Next() {
		var s domain.Schedule
		var isScreener int
		var scheduleType string
		if err := rows.Scan(&s.AnalystID, &s.Date, &s.ShiftType, &isScreener, &s.RegionID, &scheduleType); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		s.IsScreener = isScreener != 0
		s.Type = domain.ScheduleType(scheduleType)
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
