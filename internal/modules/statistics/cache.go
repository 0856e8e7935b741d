// Package statistics reports rotation workload and fairness figures computed
// from roster.db. Reports are cached in cache.db as msgpack blobs with a TTL,
// so dashboard polling does not re-scan schedule history on every request.
package statistics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultReportTTL is how long a computed report is served from cache.db
// before it is recomputed.
const DefaultReportTTL = 5 * time.Minute

// ReportCache stores msgpack-encoded report payloads with an expiration
// timestamp. cache.db is ephemeral: losing it only costs recomputation.
type ReportCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewReportCache creates a new report cache
func NewReportCache(db *sql.DB, log zerolog.Logger) *ReportCache {
	return &ReportCache{
		db:  db,
		log: log.With().Str("repo", "report_cache").Logger(),
	}
}

// Store saves a report under key with expiration = now + ttl.
// Uses INSERT OR REPLACE so refreshing an existing key is a single write.
func (c *ReportCache) Store(key string, value interface{}, ttl time.Duration) error {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO report_cache (key, data, expires_at) VALUES (?, ?, ?)",
		key, blob, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

// Load decodes a cached report into out and reports whether a fresh entry
// was found. Missing and expired entries report false with no error.
func (c *ReportCache) Load(key string, out interface{}) (bool, error) {
	var blob []byte
	err := c.db.QueryRow(
		"SELECT data FROM report_cache WHERE key = ? AND expires_at > ?",
		key, time.Now().Unix(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load report: %w", err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return true, nil
}

// InvalidateAll clears every cached report. A completed generation run
// triggers this so reports never serve pre-run numbers for the rest of
// their TTL.
func (c *ReportCache) InvalidateAll() error {
	if _, err := c.db.Exec("DELETE FROM report_cache"); err != nil {
		return fmt.Errorf("failed to clear report cache: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose expiration has passed and returns how
// many were dropped. The nightly maintenance job calls this.
func (c *ReportCache) DeleteExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM report_cache WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reports: %w", err)
	}
	return res.RowsAffected()
}
