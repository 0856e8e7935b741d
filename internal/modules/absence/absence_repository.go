package absence

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

const absenceColumns = "id, analyst_id, date, kind"

// Repository handles single-day absence persistence in roster.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new absence repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "absences").Logger(),
	}
}

// Create inserts an absence record. One record per analyst per date; a second
// insert for the same day fails on the unique index.
func (r *Repository) Create(a domain.Absence) (domain.Absence, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Kind == "" {
		a.Kind = "LEAVE"
	}

	_, err := r.db.Exec(`
		INSERT INTO absences (id, analyst_id, date, kind)
		VALUES (?, ?, ?, ?)
	`, a.ID, a.AnalystID, a.Date, a.Kind)
	if err != nil {
		return domain.Absence{}, fmt.Errorf("failed to create absence: %w", err)
	}

	return a, nil
}

// GetByID returns one absence, or nil when it does not exist
func (r *Repository) GetByID(id string) (*domain.Absence, error) {
	rows, err := r.db.Query(`SELECT `+absenceColumns+` FROM absences WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query absence: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var a domain.Absence
	if err := rows.Scan(&a.ID, &a.AnalystID, &a.Date, &a.Kind); err != nil {
		return nil, fmt.Errorf("failed to scan absence: %w", err)
	}

	return &a, nil
}

// ListByRange returns all absences inside the inclusive date window
func (r *Repository) ListByRange(start, end string) ([]domain.Absence, error) {
	rows, err := r.db.Query(`
		SELECT `+absenceColumns+`
		FROM absences
		WHERE date >= ? AND date <= ?
		ORDER BY analyst_id, date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	return scanAbsences(rows)
}

// ListByAnalystRange returns one analyst's absences inside the window
func (r *Repository) ListByAnalystRange(analystID, start, end string) ([]domain.Absence, error) {
	rows, err := r.db.Query(`
		SELECT `+absenceColumns+`
		FROM absences
		WHERE analyst_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, analystID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	return scanAbsences(rows)
}

// Delete removes an absence record
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM absences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete absence: %w", err)
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

func scanAbsences(rows *sql.Rows) ([]domain.Absence, error) {
	absences := make([]domain.Absence, 0)
	for rows.Next() {
		var a domain.Absence
		if err := rows.Scan(&a.ID, &a.AnalystID, &a.Date, &a.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		absences = append(absences, a)
	}

	return absences, rows.Err()
}
