package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

// Options selects and configures the backing store.
type Options struct {
	Driver     string // postgres | sqlite
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
	LogLevel   string // silent | error | warn | info
}

type DBService struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func Open(opts Options, logg *logger.Logger) (*DBService, error) {
	serviceLog := logg.With("service", "DBService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  parseLogLevel(opts.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = "file::memory:?cache=shared"
		}
		db, err = gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
		}
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		if sqlDB, sErr := db.DB(); sErr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	case "", "postgres", "postgresql":
		driver = "postgres"
		db, err = gorm.Open(postgres.Open(PostgresDSN(opts)), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}

	serviceLog.Info("database opened", "driver", driver)
	return &DBService{db: db, driver: driver, log: serviceLog}, nil
}

func PostgresDSN(opts Options) string {
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		opts.User,
		opts.Password,
		opts.Host,
		opts.Port,
		opts.Name,
		sslMode,
	)
}

func (s *DBService) DB() *gorm.DB   { return s.db }
func (s *DBService) Driver() string { return s.driver }

func (s *DBService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseLogLevel(s string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}
