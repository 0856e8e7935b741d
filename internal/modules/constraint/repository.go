package constraint

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

const constraintColumns = "id, analyst_id, constraint_type, start_date, end_date, is_active, description"

// Repository handles scheduling constraint persistence in roster.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new constraint repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "constraints").Logger(),
	}
}

// Create inserts a constraint. The ID is generated when empty; an empty
// analyst ID means the constraint is global.
func (r *Repository) Create(c domain.SchedulingConstraint) (domain.SchedulingConstraint, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartDate > c.EndDate {
		return domain.SchedulingConstraint{}, domain.NewConfigError("constraint start date is after end date", c.ID)
	}

	var analystID interface{}
	if c.AnalystID != "" {
		analystID = c.AnalystID
	}

	_, err := r.db.Exec(`
		INSERT INTO scheduling_constraints (id, analyst_id, constraint_type, start_date, end_date, is_active, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, analystID, string(c.Type), c.StartDate, c.EndDate, boolToInt(c.IsActive), c.Description)
	if err != nil {
		return domain.SchedulingConstraint{}, fmt.Errorf("failed to create constraint: %w", err)
	}

	return c, nil
}

// GetByID returns one constraint, or nil when it does not exist
func (r *Repository) GetByID(id string) (*domain.SchedulingConstraint, error) {
	rows, err := r.db.Query(`SELECT `+constraintColumns+` FROM scheduling_constraints WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraint: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	c, err := scanConstraint(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveOverlapping returns active constraints whose window intersects
// the inclusive date range
func (r *Repository) ListActiveOverlapping(start, end string) ([]domain.SchedulingConstraint, error) {
	rows, err := r.db.Query(`
		SELECT `+constraintColumns+`
		FROM scheduling_constraints
		WHERE is_active = 1 AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id
	`, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	return scanConstraints(rows)
}

// List returns all constraints, optionally filtered to one analyst's scope
// (their own constraints plus global ones)
func (r *Repository) List(analystID string) ([]domain.SchedulingConstraint, error) {
	query := `SELECT ` + constraintColumns + ` FROM scheduling_constraints`
	args := []interface{}{}

	if analystID != "" {
		query += ` WHERE analyst_id = ? OR analyst_id IS NULL`
		args = append(args, analystID)
	}
	query += ` ORDER BY start_date, id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	return scanConstraints(rows)
}

// SetActive flips the active flag on a constraint
func (r *Repository) SetActive(id string, active bool) error {
	result, err := r.db.Exec(`UPDATE scheduling_constraints SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update constraint: %w", err)
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

// Delete removes a constraint
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM scheduling_constraints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete constraint: %w", err)
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

func scanConstraint(rows *sql.Rows) (domain.SchedulingConstraint, error) {
	var c domain.SchedulingConstraint
	var analystID, description sql.NullString
	var constraintType string
	var active int

	if err := rows.Scan(&c.ID, &analystID, &constraintType, &c.StartDate, &c.EndDate, &active, &description); err != nil {
		return domain.SchedulingConstraint{}, fmt.Errorf("failed to scan constraint: %w", err)
	}

	c.AnalystID = analystID.String
	c.Type = domain.ConstraintType(constraintType)
	c.IsActive = active == 1
	c.Description = description.String
	return c, nil
}

func scanConstraints(rows *sql.Rows) ([]domain.SchedulingConstraint, error) {
	constraints := make([]domain.SchedulingConstraint, 0)
	for rows.Next() {
		c, err := scanConstraint(rows)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, c)
	}

	return constraints, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
