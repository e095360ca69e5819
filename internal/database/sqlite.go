package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/notifications"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every persisted table in migration order.
func Models() []any {
	models := []any{&users.User{}}
	models = append(models, journey.Models()...)
	models = append(models, notifications.Models()...)
	return append(models, &migrationRecord{})
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// A single open connection serializes writers, which is what the transactional
// clock and rating paths expect from SQLite.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

func withPragmas(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + "_pragma=busy_timeout(5000)"
}
