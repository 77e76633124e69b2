package infra

import (
	"fmt"

	"carledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. Schema setup is
// the caller's responsibility via Migrate.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// Migrate runs AutoMigrate for the two engine tables, then applies idempotent
// SQL patches for the constraints AutoMigrate cannot be trusted with on
// existing databases.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Car{}, &model.LedgerEntry{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate may skip on a
// database created by an older build. The (stock_n, date) unique index is
// load-bearing: it is what makes "latest entry before date" unambiguous and
// re-imports idempotent, so its presence is asserted here rather than left
// to tag parsing alone.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ledger_stockn_date') THEN
		    CREATE UNIQUE INDEX idx_ledger_stockn_date ON ledger_entries (stock_n, date);
		  END IF;
		END $$`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("schema patch: %w", err)
		}
	}
	return nil
}
