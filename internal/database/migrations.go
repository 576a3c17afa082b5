package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrations lists data migrations in the order they apply. Schema changes go
// through AutoMigrate; entries here rewrite stored values and each one runs
// once, inside a transaction, recorded in db_migrations.
var migrations []migrationDefinition

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger, definitions []migrationDefinition) error {
	for _, migration := range definitions {
		var records []migrationRecord
		if err := db.Where("name = ?", migration.name).Limit(1).Find(&records).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			continue
		}
		if err := db.Transaction(migration.apply); err != nil {
			return fmt.Errorf("database: migration %s: %w", migration.name, err)
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}
