package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"insightflow/api/logger"
)

// NewSQLiteDB opens a SQLite event store. path may be ":memory:".
// The pool is pinned to one connection: an in-memory database only exists
// on the connection that created it, and file databases serialise writers
// anyway.
func NewSQLiteDB(path string, log *logger.Logger) (*DBClient, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = "file::memory:?_busy_timeout=5000"
	} else {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to sqlite database: %w", err)
	}

	log.Info("Opened SQLite event store", "path", path)
	return &DBClient{DB: db, Dialect: DialectSQLite, log: log}, nil
}
