package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/easygrocer/database"
)

const applicationName = "easygrocer"

// Connection is the shared pool. One connection stays checked out by the
// Notifier for the daemon's lifetime.
type Connection struct {
	*pgxpool.Pool
}

// NewConnection migrates the schema, then opens and verifies a pool for dsn.
func NewConnection(ctx context.Context, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	conf.ConnConfig.RuntimeParams["application_name"] = applicationName
	if conf.MaxConns < 2 {
		conf.MaxConns = 2
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return &Connection{Pool: pool}, nil
}

func (c *Connection) Close() {
	c.Pool.Close()
}
