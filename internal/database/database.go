package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/onegreenvn/crm-campaign-backend/internal/config"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

// InitDB opens the database connection and migrates the schema
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// Configure GORM logger
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   gormLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table used by the service
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Customer{},
		&models.Order{},
		&models.CommunicationLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// History groups by operator, campaign and day
	err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_comm_logs_history
		ON communication_logs (created_by, campaign_name, created_at)`).Error
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	// The pending sweeper only ever scans PENDING rows
	err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_comm_logs_pending
		ON communication_logs (sent_at) WHERE status = 'PENDING'`).Error
	if err != nil {
		return fmt.Errorf("failed to create pending index: %w", err)
	}

	logrus.Info("Database migration completed")
	return nil
}
