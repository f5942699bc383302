package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/resilience"
)

// DB wraps a GORM database with Fintan logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	closed bool
	mu     sync.Mutex
}

// Open connects with retries and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid(err.Error())
	}
	dialector, _ := cfg.Dialector()
	slowThreshold, _ := time.ParseDuration(cfg.SlowQueryThreshold)
	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, slowThreshold, parseLogLevel(cfg.LogLevel)),
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	retry.InitialBackoff = time.Second
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Database connection attempt failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
			"backoff": backoff.String(),
		})
	}

	db, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		db, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return nil, FromDatabase(err, cfg.DSN)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, FromDatabase(err, cfg.DSN)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, FromDatabase(err, cfg.DSN)
		}
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug("Database connection established", logger.Fields("driver", cfg.Driver))
	return &DB{GormDB: db, log: log}, nil
}

// Close closes the underlying sql.DB connection pool. Safe to call multiple times.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.closed = true
	return sqlDB.Close()
}

// WithContext returns a GORM session scoped to the given context.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// Rows runs a raw query and returns its rows. The caller closes them.
func (d *DB) Rows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := d.GormDB.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, FromDatabase(err, "query")
	}
	return rows, nil
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, stmt string, args ...any) error {
	if err := d.GormDB.WithContext(ctx).Exec(stmt, args...).Error; err != nil {
		return FromDatabase(err, "statement")
	}
	return nil
}
