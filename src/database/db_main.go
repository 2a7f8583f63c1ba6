package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradeassistant/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB opens the client-resident sqlite ledger and runs migrations.
// This should be called once at application startup (e.g. in main()).
func InitMainDB() error {

	config := GetConfig()

	db, err := Open(config.LedgerPath, config.GormLogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open ledger database")
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.Info("[database] ledger connection established")

	if err := Migrate(MainDB); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	logrus.Info("[database] ledger migrations completed")

	return nil
}

// Open opens a sqlite ledger at the given path. sqlite serializes writers,
// so the pool is pinned to a single connection; the whole core interleaves
// on explicit await points anyway.
func Open(path string, gormLogLevel int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(gormLogLevel)),
		},
	)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}

// Migrate runs AutoMigrate for the write-side schema.
// Add here all models that belong to the mirrored ledger.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Trade{},
		&model.Position{},
		&model.OptionPosition{},
		&model.CorporateAction{},
		&model.OrderIntent{},
		&model.ConfirmedOrder{},
		&model.CacheEntry{},
	)
}
