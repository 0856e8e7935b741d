package roster

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// shiftColumns is the list of columns for the shift_definitions table
const shiftColumns = `id, region_id, name, start_time, end_time, is_overnight`

// ShiftRepository handles shift definition rows in roster.db
type ShiftRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewShiftRepository creates a new shift repository
func NewShiftRepository(db *sql.DB, log zerolog.Logger) *ShiftRepository {
	return &ShiftRepository{
		db:  db,
		log: log.With().Str("repo", "shift").Logger(),
	}
}

// ListByRegion returns a region's shift definitions ordered by start time,
// which is the catalog order: earliest first.
func (r *ShiftRepository) ListByRegion(regionID string) ([]domain.ShiftDefinition, error) {
	rows, err := r.db.Query(
		"SELECT "+shiftColumns+" FROM shift_definitions WHERE region_id = ? ORDER BY start_time, name",
		regionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift definitions: %w", err)
	}
	defer rows.Close()

	var shifts []domain.ShiftDefinition
	for rows.Next() {
		var s domain.ShiftDefinition
		var overnight int
		if err := rows.Scan(&s.ID, &s.RegionID, &s.Name, &s.StartTime, &s.EndTime, &overnight); err != nil {
			return nil, fmt.Errorf("failed to scan shift definition: %w", err)
		}
		s.IsOvernight = overnight != 0
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

// Create inserts a shift definition. Uniqueness is (region, name).
func (r *ShiftRepository) Create(shift domain.ShiftDefinition) (*domain.ShiftDefinition, error) {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}

	_, err := r.db.Exec(
		"INSERT INTO shift_definitions (id, region_id, name, start_time, end_time, is_overnight) VALUES (?, ?, ?, ?, ?, ?)",
		shift.ID, shift.RegionID, shift.Name, shift.StartTime, shift.EndTime, boolToInt(shift.IsOvernight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert shift definition: %w", err)
	}

	r.log.Info().
		Str("region_id", shift.RegionID).
		Str("shift", shift.Name).
		Str("start_time", shift.StartTime).
		Msg("Shift definition created")
	return &shift, nil
}
