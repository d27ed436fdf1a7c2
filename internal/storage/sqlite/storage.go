package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/yegors/co-efb/pkg/logger"
	_ "modernc.org/sqlite"
)

// Storage is the SQLite database behind notifications and METAR history
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (or creates) the database at dbPath and prepares the schema.
// ":memory:" is accepted for tests.
func Open(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Storage{db: db, logger: storageLogger}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection
func (s *Storage) Ping() error {
	return s.db.Ping()
}

// initDB creates tables and indexes if they don't exist
func (s *Storage) initDB() error {
	s.logger.Info("Initializing database schema")

	statements := []struct {
		name string
		sql  string
	}{
		{"notifications table", `
			CREATE TABLE IF NOT EXISTS notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				callsign TEXT,
				title TEXT NOT NULL,
				body TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				is_read BOOLEAN NOT NULL DEFAULT 0
			)`},
		{"notifications index", `CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`},
		{"metar history table", `
			CREATE TABLE IF NOT EXISTS metar_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				icao TEXT NOT NULL,
				raw TEXT NOT NULL,
				observed_at TIMESTAMP NOT NULL,
				UNIQUE(icao, raw)
			)`},
		{"metar history index", `CREATE INDEX IF NOT EXISTS idx_metar_history_icao ON metar_history(icao, observed_at)`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}
