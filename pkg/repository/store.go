package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/logging"
	"github.com/example/storefront/pkg/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store is the relational storage of the catalog and orders. A Store
// returned by Transaction is bound to that transaction.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Dialector picks the gorm dialector for a database URL. URLs without a
// known scheme are treated as SQLite file paths.
func Dialector(url string) (gorm.Dialector, string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), "postgres"
	case strings.HasPrefix(url, "mysql://"):
		return mysql.Open(strings.TrimPrefix(url, "mysql://")), "mysql"
	default:
		path := strings.TrimPrefix(url, "sqlite://")
		if !strings.Contains(path, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			path += sep + "_pragma=foreign_keys(1)"
		}
		return sqlite.Open(path), "sqlite"
	}
}

// NewStore connects to the database selected by cfg.URL.
func NewStore(cfg *config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	dialector, driver := Dialector(cfg.URL)

	store, err := Open(dialector, logger, &gorm.Config{
		Logger:         logging.Gorm(logger, cfg.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// a single connection serialises writers and keeps :memory: databases alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("Database connected", zap.String("driver", driver))
	return store, nil
}

// Open wraps an arbitrary dialector. gormCfg may be nil.
func Open(dialector gorm.Dialector, logger *zap.Logger, gormCfg *gorm.Config) (*Store, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logging.Gorm(logger, 0), TranslateError: true}
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Transaction runs fn inside a database transaction. The Store passed to
// fn shares the transaction; returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying handle for callers that need raw gorm access.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
