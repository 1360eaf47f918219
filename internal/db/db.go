// Package db opens the database, applies migrations and seeds reference data.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/go-garage/internal/config"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// registers the postgres driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	openAttempts = 10
	openBackoff  = 2 * time.Second
)

var kvPairRe = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)

// NormalizeDSN trims quotes and blanks pasted around a DSN. A postgres
// key=value list gets its spacing collapsed and sslmode=disable when unset.
func NormalizeDSN(driver, raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if driver != "postgres" || !kvPairRe.MatchString(s) {
		return s
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	cleaned := strings.Join(strings.Fields(s), " ")
	if !strings.Contains(strings.ToLower(cleaned), "sslmode=") {
		cleaned += " sslmode=disable"
	}
	return cleaned
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := NormalizeDSN(cfg.Driver, cfg.DSN())
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

var (
	kvPasswordRe  = regexp.MustCompile(`(password=)(\S+)`)
	urlPasswordRe = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
	// mysql: user:pass@tcp(...)
	mysqlPasswordRe = regexp.MustCompile(`^([^:/@]+:)([^@]+)(@tcp)`)
)

// MaskDSN hides the password of a DSN for logging.
func MaskDSN(dsn string) string {
	dsn = kvPasswordRe.ReplaceAllString(dsn, `${1}***`)
	dsn = urlPasswordRe.ReplaceAllString(dsn, `${1}***${3}`)
	return mysqlPasswordRe.ReplaceAllString(dsn, `${1}***${3}`)
}

// Open connects to the configured database, retrying while it starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(level)}

	var conn *gorm.DB
	for i := 0; i < openAttempts; i++ {
		conn, err = gorm.Open(dial, gcfg)
		if err == nil {
			err = conn.WithContext(ctx).Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		logger.Warn(ctx).Err(err).Int("attempt", i+1).Msg("database not ready, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(openBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", openAttempts, err)
	}
	logger.Info(ctx).Str("driver", cfg.Driver).Str("dsn", MaskDSN(NormalizeDSN(cfg.Driver, cfg.DSN()))).Msg("database connected")
	return conn, nil
}

// Migrate brings the schema up to date. Postgres with SQL migrations enabled
// uses the embedded golang-migrate files; everything else uses AutoMigrate.
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, useSQL bool) error {
	if useSQL {
		if cfg.Driver != "postgres" {
			return fmt.Errorf("sql migrations require postgres, got %q", cfg.Driver)
		}
		return runSQLMigrations(cfg.URL())
	}
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, table := range []string{"inventory_items", "jobs", "services", "payments"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

func runSQLMigrations(url string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

var seedItems = []models.InventoryItem{
	{Name: "Oil filter", Category: "Filters", Quantity: 20, Price: decimal.RequireFromString("8.50")},
	{Name: "Air filter", Category: "Filters", Quantity: 12, Price: decimal.RequireFromString("14.00")},
	{Name: "Brake pads (front)", Category: "Brakes", Quantity: 6, Price: decimal.RequireFromString("45.00")},
	{Name: "Spark plug", Category: "Ignition", Quantity: 40, Price: decimal.RequireFromString("6.25")},
	{Name: "Wiper blade", Category: "Accessories", Quantity: 3, Price: decimal.RequireFromString("11.90")},
}

// Seed inserts starter inventory items that are not present yet.
func Seed(conn *gorm.DB) error {
	for _, it := range seedItems {
		item := it
		var existing models.InventoryItem
		err := conn.Where("name = ?", item.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("seed lookup %q: %w", item.Name, err)
		}
		if err := conn.Create(&item).Error; err != nil {
			return fmt.Errorf("seed %q: %w", item.Name, err)
		}
	}
	return nil
}
