// Package roster manages the scheduling master data: regions, shift
// definitions, analysts and holidays, plus the per-region shift catalog.
package roster

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// regionColumns is the list of columns for the regions table
const regionColumns = `id, name, timezone, active, created_at`

// RegionRepository handles region rows in roster.db
type RegionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRegionRepository creates a new region repository
func NewRegionRepository(db *sql.DB, log zerolog.Logger) *RegionRepository {
	return &RegionRepository{
		db:  db,
		log: log.With().Str("repo", "region").Logger(),
	}
}

// GetByID returns a region, or nil when it does not exist
func (r *RegionRepository) GetByID(id string) (*domain.Region, error) {
	rows, err := r.db.Query("SELECT "+regionColumns+" FROM regions WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query region: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	region, err := scanRegion(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan region: %w", err)
	}
	return &region, nil
}

// List returns regions ordered by id. With activeOnly, deactivated regions
// are filtered out.
func (r *RegionRepository) List(activeOnly bool) ([]domain.Region, error) {
	query := "SELECT " + regionColumns + " FROM regions"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var regions []domain.Region
	for rows.Next() {
		region, err := scanRegion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

// Create inserts a region. An empty ID is filled with a fresh UUID.
func (r *RegionRepository) Create(region domain.Region) (*domain.Region, error) {
	if region.ID == "" {
		region.ID = uuid.NewString()
	}
	if region.Timezone == "" {
		return nil, domain.NewConfigError("region timezone is required", region.ID)
	}

	_, err := r.db.Exec(
		"INSERT INTO regions (id, name, timezone, active) VALUES (?, ?, ?, ?)",
		region.ID, region.Name, region.Timezone, boolToInt(region.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert region: %w", err)
	}

	r.log.Info().Str("region_id", region.ID).Str("timezone", region.Timezone).Msg("Region created")
	return &region, nil
}

// SetActive flips the soft-deactivation flag
func (r *RegionRepository) SetActive(id string, active bool) error {
	res, err := r.db.Exec("UPDATE regions SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update region: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("region %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanRegion(rows *sql.Rows) (domain.Region, error) {
	var region domain.Region
	var active int
	var createdAt sql.NullString

	if err := rows.Scan(&region.ID, &region.Name, &region.Timezone, &active, &createdAt); err != nil {
		return domain.Region{}, err
	}
	region.Active = active != 0
	region.CreatedAt = parseTimestamp(createdAt)
	return region, nil
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
