package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lmdPortal/internal/config"
	"lmdPortal/models"
)

// Models lists every table owned by the portal, in dependency order.
var Models = []any{
	&models.Manifest{},
	&models.Rider{},
	&models.Shipment{},
	&models.TrackingEvent{},
	&models.Pickup{},
	&models.AuditLog{},
	&models.APIHistoryEntry{},
}

// Open opens the configured database and migrates the schema.
// For sqlite it applies the same pragmas the service relies on (busy timeout,
// foreign keys, WAL for file databases); in-memory databases are pinned to a
// single connection so every query sees the same data.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	memory := false
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "lmd.db"
		}
		memory = strings.Contains(dsn, "mode=memory") || dsn == ":memory:"
		dialector = sqlite.Open(withSQLitePragmas(dsn, memory))
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres requires DB_DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	d, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := d.DB()
	if err != nil {
		return nil, err
	}
	if memory {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := d.AutoMigrate(Models...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close releases the underlying connection pool.
func Close(d *gorm.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withSQLitePragmas(dsn string, memory bool) string {
	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	if !memory {
		// journal_mode is not supported for in-memory databases.
		params = append(params, "_journal_mode=WAL")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") && !memory {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(params, "&")
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
