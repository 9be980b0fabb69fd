package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"insightflow/api/config"
	"insightflow/api/logger"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *logger.Logger
}

func NewClickHouseDB(cfg *config.Config, log *logger.Logger) (*ClickHouseClient, error) {
	if cfg.ClickHouseHost == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort)},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "insightflow-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("Connected to ClickHouse archive", "host", cfg.ClickHouseHost, "database", cfg.ClickHouseDB)
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		c.log.Info("ClickHouse connection closed")
	}
}
