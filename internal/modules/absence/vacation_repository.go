package absence

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

const vacationColumns = "id, analyst_id, start_date, end_date, is_approved, reason"

// VacationRepository handles vacation persistence in roster.db
type VacationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewVacationRepository creates a new vacation repository
func NewVacationRepository(db *sql.DB, log zerolog.Logger) *VacationRepository {
	return &VacationRepository{
		db:  db,
		log: log.With().Str("repo", "vacations").Logger(),
	}
}

// Create inserts a vacation request. The ID is generated when empty.
func (r *VacationRepository) Create(v domain.Vacation) (domain.Vacation, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.StartDate > v.EndDate {
		return domain.Vacation{}, domain.NewConfigError("vacation start date is after end date", v.AnalystID)
	}

	_, err := r.db.Exec(`
		INSERT INTO vacations (id, analyst_id, start_date, end_date, is_approved, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.AnalystID, v.StartDate, v.EndDate, boolToInt(v.IsApproved), v.Reason)
	if err != nil {
		return domain.Vacation{}, fmt.Errorf("failed to create vacation: %w", err)
	}

	return v, nil
}

// ListByAnalyst returns all vacations for an analyst, newest first
func (r *VacationRepository) ListByAnalyst(analystID string) ([]domain.Vacation, error) {
	rows, err := r.db.Query(`
		SELECT `+vacationColumns+`
		FROM vacations
		WHERE analyst_id = ?
		ORDER BY start_date DESC
	`, analystID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vacations: %w", err)
	}
	defer rows.Close()

	return scanVacations(rows)
}

// ListOverlapping returns vacations that intersect the inclusive window.
// With approvedOnly set, pending and rejected requests are filtered out.
func (r *VacationRepository) ListOverlapping(start, end string, approvedOnly bool) ([]domain.Vacation, error) {
	query := `
		SELECT ` + vacationColumns + `
		FROM vacations
		WHERE start_date <= ? AND end_date >= ?
	`
	args := []interface{}{end, start}

	if approvedOnly {
		query += " AND is_approved = 1"
	}
	query += " ORDER BY analyst_id, start_date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vacations: %w", err)
	}
	defer rows.Close()

	return scanVacations(rows)
}

// SetApproval flips the approval flag on a vacation request
func (r *VacationRepository) SetApproval(id string, approved bool) error {
	result, err := r.db.Exec(`UPDATE vacations SET is_approved = ? WHERE id = ?`, boolToInt(approved), id)
	if err != nil {
		return fmt.Errorf("failed to update vacation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Delete removes a vacation request
func (r *VacationRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM vacations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vacation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func scanVacations(rows *sql.Rows) ([]domain.Vacation, error) {
	vacations := make([]domain.Vacation, 0)
	for rows.Next() {
		var v domain.Vacation
		var approved int
		var reason sql.NullString

		if err := rows.Scan(&v.ID, &v.AnalystID, &v.StartDate, &v.EndDate, &approved, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan vacation: %w", err)
		}

		v.IsApproved = approved == 1
		v.Reason = reason.String
		vacations = append(vacations, v)
	}

	return vacations, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
