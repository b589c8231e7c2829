package config

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLX opens and pings a *sqlx.DB on the lib/pq driver.
func PostgresSQLX(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open the database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", pingErr)
	}

	return db, nil
}
