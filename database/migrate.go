// Package database handles schema migration.
package database

import (
	"gorm.io/gorm"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/models"
)

// Migrate applies the schema. uuid-ossp backs the uuid_generate_v4 column
// defaults.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}

	err := db.AutoMigrate(
		&models.Plan{},
		&models.User{},
		&models.Agent{},
		&models.Assistant{},
		&models.Transcription{},
		&models.AgentAction{},
		&models.AssistantRun{},
	)
	if err != nil {
		return err
	}

	logger.Info("database schema migrated")
	return nil
}
