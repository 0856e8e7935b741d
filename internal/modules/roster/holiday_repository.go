package roster

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// HolidayRepository handles holiday rows in roster.db
type HolidayRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHolidayRepository creates a new holiday repository
func NewHolidayRepository(db *sql.DB, log zerolog.Logger) *HolidayRepository {
	return &HolidayRepository{
		db:  db,
		log: log.With().Str("repo", "holiday").Logger(),
	}
}

// ListByRegionRange returns a region's holidays inside [start, end] inclusive,
// ordered by date.
func (r *HolidayRepository) ListByRegionRange(regionID, start, end string) ([]domain.Holiday, error) {
	rows, err := r.db.Query(
		"SELECT id, region_id, date, name FROM holidays WHERE region_id = ? AND date >= ? AND date <= ? ORDER BY date, name",
		regionID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.RegionID, &h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// Create inserts a holiday
func (r *HolidayRepository) Create(holiday domain.Holiday) (*domain.Holiday, error) {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}

	_, err := r.db.Exec(
		"INSERT INTO holidays (id, region_id, date, name) VALUES (?, ?, ?, ?)",
		holiday.ID, holiday.RegionID, holiday.Date, holiday.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert holiday: %w", err)
	}
	return &holiday, nil
}
