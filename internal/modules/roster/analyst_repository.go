package roster

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// analystColumns is the list of columns for the analysts table
const analystColumns = `id, display_name, email, region_id, shift_affiliation,
employee_type, experience_level, active, created_at`

// AnalystRepository handles analyst rows in roster.db
type AnalystRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAnalystRepository creates a new analyst repository
func NewAnalystRepository(db *sql.DB, log zerolog.Logger) *AnalystRepository {
	return &AnalystRepository{
		db:  db,
		log: log.With().Str("repo", "analyst").Logger(),
	}
}

// GetByID returns an analyst, or nil when it does not exist
func (r *AnalystRepository) GetByID(id string) (*domain.Analyst, error) {
	rows, err := r.db.Query("SELECT "+analystColumns+" FROM analysts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyst: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	analyst, err := scanAnalyst(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan analyst: %w", err)
	}
	return &analyst, nil
}

// ListByRegion returns a region's analysts ordered by id for deterministic
// downstream iteration.
func (r *AnalystRepository) ListByRegion(regionID string, activeOnly bool) ([]domain.Analyst, error) {
	query := "SELECT " + analystColumns + " FROM analysts WHERE region_id = ?"
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(query, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysts: %w", err)
	}
	defer rows.Close()

	var analysts []domain.Analyst
	for rows.Next() {
		analyst, err := scanAnalyst(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analyst: %w", err)
		}
		analysts = append(analysts, analyst)
	}
	return analysts, rows.Err()
}

// Create inserts an analyst. An empty ID is filled with a fresh UUID.
func (r *AnalystRepository) Create(analyst domain.Analyst) (*domain.Analyst, error) {
	if analyst.ID == "" {
		analyst.ID = uuid.NewString()
	}
	if analyst.EmployeeType == "" {
		analyst.EmployeeType = "FULL_TIME"
	}
	if analyst.ExperienceLevel == "" {
		analyst.ExperienceLevel = "STANDARD"
	}

	_, err := r.db.Exec(
		`INSERT INTO analysts (id, display_name, email, region_id, shift_affiliation, employee_type, experience_level, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		analyst.ID, analyst.DisplayName, analyst.Email, analyst.RegionID,
		analyst.ShiftAffiliation, analyst.EmployeeType, analyst.ExperienceLevel, boolToInt(analyst.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analyst: %w", err)
	}

	r.log.Info().
		Str("analyst_id", analyst.ID).
		Str("region_id", analyst.RegionID).
		Str("affiliation", analyst.ShiftAffiliation).
		Msg("Analyst created")
	return &analyst, nil
}

// Update rewrites the mutable analyst fields
func (r *AnalystRepository) Update(analyst domain.Analyst) error {
	res, err := r.db.Exec(
		`UPDATE analysts SET display_name = ?, email = ?, region_id = ?, shift_affiliation = ?,
		 employee_type = ?, experience_level = ?, active = ? WHERE id = ?`,
		analyst.DisplayName, analyst.Email, analyst.RegionID, analyst.ShiftAffiliation,
		analyst.EmployeeType, analyst.ExperienceLevel, boolToInt(analyst.Active), analyst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analyst: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analyst %s: %w", analyst.ID, domain.ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes an analyst. Analysts referenced by schedules are
// never removed from the table.
func (r *AnalystRepository) Deactivate(id string) error {
	res, err := r.db.Exec("UPDATE analysts SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate analyst: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analyst %s: %w", id, domain.ErrNotFound)
	}

	r.log.Info().Str("analyst_id", id).Msg("Analyst deactivated")
	return nil
}

func scanAnalyst(rows *sql.Rows) (domain.Analyst, error) {
	var a domain.Analyst
	var active int
	var createdAt sql.NullString

	if err := rows.Scan(
		&a.ID, &a.DisplayName, &a.Email, &a.RegionID, &a.ShiftAffiliation,
		&a.EmployeeType, &a.ExperienceLevel, &active, &createdAt,
	); err != nil {
		return domain.Analyst{}, err
	}
	a.Active = active != 0
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}
