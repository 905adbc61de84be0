// Package store persists cut records and ingestion bookkeeping with GORM.
// SQLite is the default backend; PostgreSQL is used in production.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/cut"
	"github.com/lcdc/cutlog/pkg/logger"
)

// ErrAlreadyIngested is returned by CommitFile when the file's checksum is
// already recorded. Nothing from the batch is written.
var ErrAlreadyIngested = errors.New("file content already ingested")

// ErrNoDatabase is returned by OpenExisting when the SQLite file is missing.
var ErrNoDatabase = errors.New("database does not exist")

// Store is the record store.
type Store struct {
	db     *gorm.DB
	driver string
	tx     TxRunner
	log    *logger.Logger

	records RecordRepo
	files   FileRepo
}

// Open connects to the configured database. It does not migrate.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	serviceLog := log.With("service", "Store", "driver", cfg.Driver)

	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = config.DefaultSlowThreshold
	}
	gormLog := gormLogger.New(
		gormWriter{log: serviceLog},
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Store{
		db:      db,
		driver:  normalizeDriver(cfg.Driver),
		tx:      NewGormTxRunner(db),
		log:     serviceLog,
		records: NewRecordRepo(db, serviceLog),
		files:   NewFileRepo(db, serviceLog),
	}, nil
}

// OpenExisting is Open for commands that only read. A SQLite file that does
// not exist yet yields ErrNoDatabase instead of being created.
func OpenExisting(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	if normalizeDriver(cfg.Driver) == "sqlite" {
		if path := sqlitePath(cfg.DSN); path != "" {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNoDatabase, path)
			}
		}
	}
	return Open(cfg, log)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch normalizeDriver(driver) {
	case "sqlite":
		return sqlite.Open(sqliteDSN(dsn)), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return driver
	}
}

// sqliteDSN enables WAL and a busy timeout on plain file paths so that
// concurrent ingestion runs wait for the write lock instead of failing.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") || strings.Contains(dsn, ":memory:") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}

// sqlitePath returns the file a SQLite DSN points at, or "" for in-memory
// databases.
func sqlitePath(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// HasSchema reports whether the record table exists.
func (s *Store) HasSchema(ctx context.Context) bool {
	return s.db.WithContext(ctx).Migrator().HasTable(&cut.Record{})
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver returns the normalized driver name.
func (s *Store) Driver() string { return s.driver }

// DB exposes the GORM handle.
func (s *Store) DB() *gorm.DB { return s.db }

// gormWriter routes GORM's logger output into zap.
type gormWriter struct {
	log *logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}
