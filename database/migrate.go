package database

import (
	"github.com/lshigami/examdesk/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema, including the indexes struct tags cannot express.
func Migrate(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Exam{},
		&model.Question{},
		&model.Attempt{},
		&model.Answer{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}

	// One in-progress attempt per (user, exam).
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempt_active ON attempts (user_id, exam_id) WHERE state = 'in_progress'`).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to create active attempt index")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
