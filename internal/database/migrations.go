package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLowercaseUsernames = "2026-10-01_lowercase_usernames"

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

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationLowercaseUsernames, apply: lowercaseUsernames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		}); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// lowercaseUsernames normalizes rows written before usernames were case-folded.
// Rows whose lowercase form already exists are left alone rather than merged.
func lowercaseUsernames(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("username <> lower(trim(username))").
		Where("NOT EXISTS (SELECT 1 FROM users AS other WHERE other.username = lower(trim(users.username)))").
		Update("username", gorm.Expr("lower(trim(username))")).Error
}
