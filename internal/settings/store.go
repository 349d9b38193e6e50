// Package settings persists playback preferences and the loudness
// measurement cache in SQLite, using the teacher's NewDatabase/pragma-tuning
// idiom shrunk to the two tables this engine needs.
package settings

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akarpov/sonance/internal/logging"
)

// Store wraps a single sqlite connection guarding the playback_settings and
// loudness_cache tables. Like the teacher's Database, it pins the pool to
// one connection since modernc.org/sqlite serializes writers anyway.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open creates (if needed) the parent directory of dbPath, opens the
// database, applies the teacher's pragma list, and runs migrations.
func Open(dbPath string, enableWAL bool, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Info("creating new settings database", "path", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=memory",
		"PRAGMA cache_size=-64000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA mmap_size=268435456",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma %s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS playback_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			output_device TEXT,
			exclusive_mode INTEGER NOT NULL DEFAULT 0,
			backend_type TEXT NOT NULL DEFAULT 'pipewire',
			alsa_plugin TEXT,
			preferred_sample_rate INTEGER,
			device_sample_rate_limits TEXT NOT NULL DEFAULT '{}',
			limit_quality_to_device INTEGER NOT NULL DEFAULT 0,
			normalization_enabled INTEGER NOT NULL DEFAULT 1,
			normalization_target_lufs REAL NOT NULL DEFAULT -18.0,
			gapless_enabled INTEGER NOT NULL DEFAULT 1,
			stream_first_track INTEGER NOT NULL DEFAULT 1,
			stream_buffer_seconds REAL NOT NULL DEFAULT 2.0,
			streaming_only INTEGER NOT NULL DEFAULT 0,
			pw_force_bitperfect INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS loudness_cache (
			track_id INTEGER PRIMARY KEY,
			gain_db REAL NOT NULL,
			peak REAL NOT NULL DEFAULT 0.0,
			source TEXT NOT NULL DEFAULT 'ebur128',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for components (like the loudness
// cache) that want direct access rather than a Store-specific method.
func (s *Store) DB() *sql.DB {
	return s.db
}
