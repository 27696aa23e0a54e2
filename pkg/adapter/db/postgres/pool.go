// Package postgres provides a Store backend (see store.go) built on
// the shared pkg/adapter/db/ormstore implementation. gorm.io/gorm
// models the connection pool and runs queries; jackc/pgx/v5 is used
// underneath by gorm.io/driver/postgres.
package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool represents a database connection pool.
// It may be used concurrently from different goroutines.
type Pool struct {
	*gorm.DB
}

// NewPool instances a connection pool using the url connection string.
func NewPool(ctx context.Context, url string) (*Pool, error) {
	gdb, err := gorm.Open(postgres.Open(url), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open: %w", err)
	}
	gdb = gdb.Session(&gorm.Session{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: false,
				Colorful:                  true,
				// Set to false in order to log with replaced vars
				ParameterizedQueries: true,
			}),
	})
	pool := &Pool{DB: gdb}
	sqlDB, err := pool.DB.DB()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("accessing underlying *sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return pool, nil
}

// Close closes all connections of this connection pool and returns
// any occurred error.
func (p *Pool) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
