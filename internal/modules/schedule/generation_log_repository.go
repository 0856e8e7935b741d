package schedule

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/domain"
)

// generationLogColumns is the list of columns for the generation_log table
const generationLogColumns = `run_id, performer, algorithm_name, start_date, end_date,
schedules_generated, conflicts_detected, fairness_score, execution_time_ms,
status, error_message, metadata, created_at`

// GenerationLogRepository persists one row per generation run in roster.db
type GenerationLogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewGenerationLogRepository creates a new generation log repository
func NewGenerationLogRepository(db *sql.DB, log zerolog.Logger) *GenerationLogRepository {
	return &GenerationLogRepository{
		db:  db,
		log: log.With().Str("repo", "generation_log").Logger(),
	}
}

// InsertTx writes one run record inside a caller-owned transaction
func (r *GenerationLogRepository) InsertTx(tx *sql.Tx, entry domain.GenerationLog) error {
	return insertGenerationLog(tx, entry)
}

// Insert writes one run record
func (r *GenerationLogRepository) Insert(entry domain.GenerationLog) error {
	return insertGenerationLog(r.db, entry)
}

func insertGenerationLog(ex execer, entry domain.GenerationLog) error {
	var metadata interface{}
	if len(entry.Metadata) > 0 {
		blob, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode generation metadata: %w", err)
		}
		metadata = string(blob)
	}

	_, err := ex.Exec(
		`INSERT INTO generation_log (run_id, performer, algorithm_name, start_date, end_date,
		 schedules_generated, conflicts_detected, fairness_score, execution_time_ms, status, error_message, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Performer, entry.AlgorithmName, entry.StartDate, entry.EndDate,
		entry.SchedulesGenerated, entry.ConflictsDetected, entry.FairnessScore,
		entry.ExecutionTimeMs, string(entry.Status), nullable(entry.ErrorMessage), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation log: %w", err)
	}
	return nil
}

// GetByRunID returns one run record, or nil when it does not exist
func (r *GenerationLogRepository) GetByRunID(runID string) (*domain.GenerationLog, error) {
	rows, err := r.db.Query(
		"SELECT "+generationLogColumns+" FROM generation_log WHERE run_id = ?", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation log: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	entry, err := scanGenerationLog(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation log: %w", err)
	}
	return &entry, nil
}

// List returns the most recent run records, newest first
func (r *GenerationLogRepository) List(limit int) ([]domain.GenerationLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		"SELECT "+generationLogColumns+" FROM generation_log ORDER BY created_at DESC, run_id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation log: %w", err)
	}
	defer rows.Close()

	var entries []domain.GenerationLog
	for rows.Next() {
		entry, err := scanGenerationLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneOlderThan removes run records older than the retention window and
// returns how many rows were removed.
func (r *GenerationLogRepository) PruneOlderThan(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	res, err := r.db.Exec(
		"DELETE FROM generation_log WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generation log: %w", err)
	}

	pruned, _ := res.RowsAffected()
	if pruned > 0 {
		r.log.Info().Int64("pruned", pruned).Int("retention_days", days).Msg("Generation log pruned")
	}
	return pruned, nil
}

func scanGenerationLog(rows *sql.Rows) (domain.GenerationLog, error) {
	var entry domain.GenerationLog
	var status string
	var errorMessage, metadata, createdAt sql.NullString

	if err := rows.Scan(
		&entry.RunID, &entry.Performer, &entry.AlgorithmName, &entry.StartDate, &entry.EndDate,
		&entry.SchedulesGenerated, &entry.ConflictsDetected, &entry.FairnessScore,
		&entry.ExecutionTimeMs, &status, &errorMessage, &metadata, &createdAt,
	); err != nil {
		return domain.GenerationLog{}, err
	}

	entry.Status = domain.GenerationStatus(status)
	entry.ErrorMessage = errorMessage.String
	entry.CreatedAt = parseTimestamp(createdAt)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return domain.GenerationLog{}, fmt.Errorf("failed to decode generation metadata: %w", err)
		}
	}
	return entry, nil
}

// execer covers *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t
		}
	}
	return time.Time{}
}
