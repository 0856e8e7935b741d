// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/database"
)

// InitializeDatabases initializes all 3 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. roster.db - Roster state (regions, shifts, analysts, schedules, constraints)
	rosterDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "roster.db"),
		Profile: database.ProfileStandard,
		Name:    "roster",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize roster database: %w", err)
	}
	container.RosterDB = rosterDB

	// 2. ledger.db - Immutable comp-off audit trail
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger, // Maximum safety for the append-only ledger
		Name:    "ledger",
	})
	if err != nil {
		rosterDB.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 3. cache.db - Ephemeral report cache
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache, // Maximum speed for rebuildable data
		Name:    "cache",
	})
	if err != nil {
		rosterDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	container.Databases = map[string]*database.DB{
		"roster": rosterDB,
		"ledger": ledgerDB,
		"cache":  cacheDB,
	}

	// Apply schemas
	for name, db := range container.Databases {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("databases", len(container.Databases)).
		Msg("Databases initialized")

	return container, nil
}
