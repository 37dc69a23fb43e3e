package database

import (
	"strings"

	"asset-ledger/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN. postgres:// and postgresql:// DSNs go to Postgres
// (PreferSimpleProtocol keeps poolers such as PgBouncer happy); anything else is
// treated as an embedded SQLite file or ":memory:".
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if IsPostgres(dsn) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; serialise through a single connection so upserts never see SQLITE_BUSY.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsPostgres reports whether dsn addresses a Postgres server.
func IsPostgres(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") || strings.Contains(d, "host=")
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&domain.Account{},
		&domain.Asset{},
		&domain.Transaction{},
		&domain.BaselineSnapshot{},
		&domain.PortfolioHistoryPoint{},
		&domain.AssetHistoryPoint{},
		&domain.SyncRun{},
	}
}

// AutoMigrate creates or updates the schema, including the composite unique indexes
// that make ingestion and history writes idempotent.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
