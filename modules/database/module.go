// Package database provides the shared relational store as a mono plugin.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database backend.
type Config struct {
	Driver string
	// Path is the SQLite file, or ":memory:".
	Path string
	// URL is the Postgres connection string.
	URL   string
	Debug bool
}

// Migrator creates or updates one area's tables.
type Migrator func(db *gorm.DB) error

// PluginModule opens the database before regular modules start and closes it
// after they stop. Consumers receive it through SetPlugin under alias "db".
type PluginModule struct {
	container  types.ServiceContainer
	cfg        Config
	migrators  []Migrator
	db         *gorm.DB
	sqlDB      *sql.DB
	migratedAt time.Time
}

// Compile-time interface checks.
var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the plugin. Migrators run in order on Start.
func NewPluginModule(cfg Config, migrators ...Migrator) *PluginModule {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	return &PluginModule{cfg: cfg, migrators: migrators}
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "database"
}

// Start opens the connection and runs migrations.
func (m *PluginModule) Start(_ context.Context) error {
	db, err := Open(m.cfg)
	if err != nil {
		return err
	}
	m.db = db

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	m.sqlDB = sqlDB

	for _, migrate := range m.migrators {
		if err := migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	m.migratedAt = time.Now()

	log.Printf("[database] Connected (driver: %s, migrations: %d)", m.cfg.Driver, len(m.migrators))
	return nil
}

// Stop closes the connection pool.
func (m *PluginModule) Stop(_ context.Context) error {
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	log.Println("[database] Plugin stopped")
	return nil
}

// SetContainer sets the service container for this plugin.
func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// DB returns the shared gorm handle. It is nil before Start.
func (m *PluginModule) DB() *gorm.DB {
	return m.db
}

// Driver returns the configured driver name.
func (m *PluginModule) Driver() string {
	return m.cfg.Driver
}

// Health pings the database.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.sqlDB == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	if err := m.sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	stats := m.sqlDB.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":           m.cfg.Driver,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"migrated_at":      m.migratedAt,
		},
	}
}

// Open connects to the configured backend. SQLite runs with a single
// connection so writers serialise; Postgres goes through the pgx stdlib
// driver.
func Open(cfg Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	switch cfg.Driver {
	case DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = "wighaven.db"
		}
		dsn := path
		if path != ":memory:" {
			dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil

	case DriverPostgres:
		if cfg.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		connCfg, err := pgx.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		sqlDB := stdlib.OpenDB(*connCfg)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)

		db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	}

	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
}
