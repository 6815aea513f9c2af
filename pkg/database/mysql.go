package database

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listingpilot/backend/internal/config"
	"listingpilot/backend/internal/models"
)

var DB *gorm.DB

// InitDatabase connects to MySQL and migrates the history and mapping
// tables. It is skipped entirely when DB_ENABLED is false.
func InitDatabase(cfg *config.Config) error {
	if !cfg.Database.Enabled {
		log.Println("⏭️ Database disabled, attempt history will not be stored")
		return nil
	}

	level := logger.Warn
	if cfg.Server.Mode == "debug" {
		level = logger.Info
	}

	var err error
	DB, err = gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Database connected successfully")

	return AutoMigrate(DB)
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.FieldMapping{}, &models.PostingAttempt{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database migration completed")
	return nil
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.Close()
	}
}
