package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects and configures the backing relational database. Driver is
// "mysql" for production or "sqlite" for local development and tests.
type Config struct {
	Driver     string
	MySQLDSN   string
	SQLitePath string
}

// DB wraps *gorm.DB, matching the handle shape nearly every caller in the
// teacher codebase already assumed (game/tables.go, matchmaking.go,
// recovery/table_recovery.go all invoke gorm methods against what the
// teacher's own internal/db/db.go typed as a raw *sql.DB wrapper) — see
// DESIGN.md Component F.
type DB struct {
	*gorm.DB
}

// New opens the configured driver, verifies connectivity, and runs
// AutoMigrate over every model this package owns.
func New(cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("mysql driver selected but no DSN configured")
		}
		dialector = mysql.Open(cfg.MySQLDSN)
	case "sqlite", "":
		path := cfg.SQLitePath
		if path == "" {
			path = "hearts.db"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := &DB{DB: gormDB}
	if err := wrapped.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("[DB] connected using driver=%s", cfg.Driver)
	return wrapped, nil
}

// AutoMigrate creates or updates every table this package owns. Run via
// gorm's AutoMigrate rather than replaying hand-written SQL files, since
// this repository carries no migrations/ directory of its own — see
// DESIGN.md Component F.
func (d *DB) AutoMigrate() error {
	models := []interface{}{&User{}, &Table{}, &SeatedPlayer{}, &Round{}, &RoundScore{}, &GameEvent{}}
	for _, m := range models {
		if err := d.DB.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
		log.Printf("[DB] migrated %T", m)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
