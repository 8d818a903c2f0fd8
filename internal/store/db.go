package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingAttempts = 5
	pingBackoff  = time.Second
)

// Open connects through the pgx driver. The database often comes up after
// the API in compose setups, so the first ping is retried with a growing
// delay until ctx ends.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(15)

	delay := pingBackoff
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	_ = db.Close()
	return nil, fmt.Errorf("ping db after %d attempts: %w", pingAttempts, err)
}
