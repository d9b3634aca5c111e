package database

import (
	"fmt"
	"time"

	"github.com/komuness/core/internal/config"
	"github.com/komuness/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	db, err := openDB(cfg, resolveLogLevel(cfg))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

func openDB(cfg *config.AppConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// Migrate runs GORM auto-migration for the publication tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PublicationModel{},
		&models.EditHistoryModel{},
		&models.CommentModel{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "mysql" {
		for _, stmt := range []string{
			"ALTER TABLE `publications` MODIFY COLUMN `contenido` LONGTEXT NULL",
			"ALTER TABLE `publications` MODIFY COLUMN `pending_update` LONGTEXT NULL",
			"ALTER TABLE `publication_edit_histories` MODIFY COLUMN `data` LONGTEXT NULL",
			"ALTER TABLE `publication_comments` MODIFY COLUMN `contenido` LONGTEXT NOT NULL",
		} {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Ping checks that the SQL connection is alive.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
