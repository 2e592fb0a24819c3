package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campaignready/internal/domain"
	"campaignready/internal/support"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the scan ledger. It stays nil when the ledger is disabled.
var DB *gorm.DB

var errNotConfigured = errors.New("database: connection was not configured")

type setupOptions struct {
	existing  *gorm.DB
	dialector gorm.Dialector
	logger    logger.Interface
	migrate   bool
	models    []any
}

type Option func(*setupOptions)

// SetupDB opens the scan ledger. Without options the driver is chosen from
// DB_DRIVER: "postgres" (default, DB_* connection env) or "sqlite" (DB_PATH).
func SetupDB(opts ...Option) (*gorm.DB, error) {
	o := setupOptions{
		logger:  silentLogger(),
		migrate: true,
		models:  []any{domain.ScanRecord{}},
	}
	for _, opt := range opts {
		opt(&o)
	}

	db := o.existing
	if db == nil {
		dialector := o.dialector
		if dialector == nil {
			var err error
			if dialector, err = dialectorFromEnv(); err != nil {
				return nil, err
			}
		}

		opened, err := gorm.Open(dialector, &gorm.Config{Logger: o.logger})
		if err != nil {
			return nil, fmt.Errorf("database: open connection: %w", err)
		}
		configureConnectionPool(opened)
		db = opened
	}

	if o.migrate && len(o.models) > 0 {
		if err := db.AutoMigrate(o.models...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Info("Ledger migration completed.", "dialect", db.Dialector.Name())
	}

	DB = db
	return DB, nil
}

func dialectorFromEnv() (gorm.Dialector, error) {
	switch driver := strings.ToLower(support.GetEnv("DB_DRIVER", "postgres")); driver {
	case "postgres", "postgresql":
		return postgres.Open(postgresDSN()), nil
	case "sqlite":
		return sqlite.Open(support.GetEnv("DB_PATH", "data/ledger.db")), nil
	default:
		return nil, fmt.Errorf("database: unsupported DB_DRIVER %q", driver)
	}
}

func postgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		support.GetEnv("DB_HOST", "localhost"),
		support.GetEnv("DB_PORT", "5432"),
		support.GetEnv("DB_USERNAME", "admin"),
		support.GetEnv("DB_PASSWORD", "admin"),
		support.GetEnv("DB_NAME", "campaignready"),
		support.GetEnv("DB_SSLMODE", "disable"),
	)
}

func silentLogger() logger.Interface {
	return logger.New(log.Default(), logger.Config{LogLevel: logger.Silent})
}

// Enabled reports whether a ledger connection is configured.
func Enabled() bool {
	return DB != nil
}

func WithExistingDB(db *gorm.DB) Option {
	return func(o *setupOptions) { o.existing = db }
}

func WithDialector(d gorm.Dialector) Option {
	return func(o *setupOptions) { o.dialector = d }
}

func WithLogger(l logger.Interface) Option {
	return func(o *setupOptions) { o.logger = l }
}

func WithAutoMigrate(enabled bool) Option {
	return func(o *setupOptions) { o.migrate = enabled }
}

func configureConnectionPool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 16)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen), maxOpen))
	sqlDB.SetConnMaxLifetime(time.Duration(support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(support.GetEnvInt("DB_CONN_MAX_IDLE_TIME", 60)) * time.Second)
}

// Close releases the ledger connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	DB = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
