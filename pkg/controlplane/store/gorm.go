package store

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// GORMStore implements Store on top of GORM. SQLite and PostgreSQL share
// every query; only the dialector and pool sizing differ.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// Compile-time interface check
var _ Store = (*GORMStore)(nil)

// New opens the configured database and migrates the schema. A nil config
// selects SQLite at the default path.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &GORMStore{db: db, config: config}
	sqlDB, err := s.sqlDB()
	if err != nil {
		return nil, err
	}
	if config.Type == DatabaseTypePostgres {
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	} else {
		// One connection serializes writers and keeps :memory: shared.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}
	return s, nil
}

// DB exposes the GORM handle for queries the Store interface does not cover.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Type reports the backend in use.
func (s *GORMStore) Type() DatabaseType {
	return s.config.Type
}

func (s *GORMStore) sqlDB() (*sql.DB, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB, nil
}

// Healthcheck pings the database. It backs the "database" readiness probe.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
