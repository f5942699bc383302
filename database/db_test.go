package database

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{DSN: "x.db"}
	cfg.ApplyDefaults()
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "200ms", cfg.SlowQueryThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())

	cfg = Config{DSN: "x", Driver: "org.postgresql.Driver"}
	cfg.ApplyDefaults()
	assert.ErrorContains(t, cfg.Validate(), "unsupported database driver")

	cfg = Config{DSN: "x", SlowQueryThreshold: "soon"}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())
}

func TestConfig_JDBCDriverAndURL(t *testing.T) {
	cfg := Config{Driver: "org.sqlite.JDBC", DSN: "jdbc:sqlite:/tmp/x.db"}
	d, err := cfg.Dialector()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
	assert.Equal(t, "/tmp/x.db", sqliteDSN(cfg.DSN))
}

func TestOpenQueryAndClose(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "test.db")}, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, db.Exec(ctx, "CREATE TABLE words (id INTEGER, word TEXT)"))
	require.NoError(t, db.Exec(ctx, "INSERT INTO words VALUES (?, ?), (?, ?)", 1, "a", 2, "b"))

	rows, err := db.Rows(ctx, "SELECT word FROM words ORDER BY id")
	require.NoError(t, err)
	var words []string
	for rows.Next() {
		var w string
		require.NoError(t, rows.Scan(&w))
		words = append(words, w)
	}
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"a", "b"}, words)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{}, logger.Nop())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestFromDatabase(t *testing.T) {
	assert.Nil(t, FromDatabase(nil, "x"))
	err := FromDatabase(assert.AnError, "select")
	assert.Equal(t, apperrors.ErrCodeResource, err.Code)

	busy := FromDatabase(sqlite3.Error{Code: sqlite3.ErrBusy}, "select")
	assert.Equal(t, apperrors.ErrCodeExternalService, busy.Code)
	assert.True(t, busy.Retryable)
	assert.True(t, IsConnectionError(fmt.Errorf("query: %w", driver.ErrBadConn)))
	assert.False(t, IsConnectionError(sqlite3.Error{Code: sqlite3.ErrConstraint}))
}

func TestQueryLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, &buf, "test")
	ql := newGormLogger(log, time.Hour, parseLogLevel("WARN"))

	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Empty(t, buf.String())

	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT x", 0 }, errors.New("no such column"))
	assert.Contains(t, buf.String(), "Query failed")
	assert.Contains(t, buf.String(), "no such column")

	buf.Reset()
	ql.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Contains(t, buf.String(), "SELECT 2")
	assert.Equal(t, gormlogger.Warn, parseLogLevel("chatty"))
}
