package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"insightflow/api/logger"
)

type DBClient struct {
	DB      *sql.DB
	Dialect Dialect
	log     *logger.Logger
}

func NewPostgresDB(dbURL string, log *logger.Logger) (*DBClient, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	log.Info("Connected to PostgreSQL event store")
	return &DBClient{DB: db, Dialect: DialectPostgres, log: log}, nil
}

func (c *DBClient) Close() {
	if c.DB == nil {
		return
	}
	if err := c.DB.Close(); err != nil {
		c.log.Error("Error closing database connection", "error", err)
		return
	}
	c.log.Info("Event store connection closed", "dialect", string(c.Dialect))
}
