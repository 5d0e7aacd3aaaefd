// Package storage owns the gorm connection and schema for the sql record
// store drivers.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roadscan-server-go/internal/platform/errors"
	"roadscan-server-go/internal/utils"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options selects the SQL dialect and connection string.
type Options struct {
	Dialect     string
	DSN         string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	Verbose     bool
	Logger      *utils.Logger
}

// Open connects to the database and applies pending migrations.
func Open(opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	logMode := logger.Silent
	if opts.Verbose {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", fmt.Sprintf("failed to open %s database", opts.Dialect), err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if opts.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpen)
		}
		if opts.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdle)
		}
		if opts.MaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
		}
	}

	applied, err := Migrate(db)
	if err != nil {
		_ = Close(db)
		return nil, err
	}
	for _, version := range applied {
		opts.Logger.InfoTag("Store", "applied migration %s", version)
	}
	if len(applied) == 0 {
		opts.Logger.DebugTag("Store", "schema up to date at %s", RecordSchema().Latest())
	}
	return db, nil
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, errors.New(errors.KindConfig, "storage.open", "database dsn is required")
	}

	switch opts.Dialect {
	case DialectSQLite, "":
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case DialectPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, errors.New(errors.KindConfig, "storage.open", fmt.Sprintf("unsupported dialect %q", opts.Dialect))
	}
}

// ensureSQLiteDir creates the parent directory of a file-backed sqlite dsn.
func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.KindStorage, "storage.open", "failed to create data directory", err)
	}
	return nil
}

// Migrate brings db up to RecordSchema and returns the versions it applied.
func Migrate(db *gorm.DB) ([]string, error) {
	return RecordSchema().Apply(db)
}

// SchemaVersion reports how far db is migrated against RecordSchema.
func SchemaVersion(db *gorm.DB) (SchemaStatus, error) {
	if db == nil {
		return SchemaStatus{}, errors.New(errors.KindStorage, "schema.status", "database not configured")
	}
	return RecordSchema().Status(db)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
