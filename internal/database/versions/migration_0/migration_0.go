package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RewardRecord struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	VerificationType string `gorm:"size:40;not null;index"`
	VerificationInfo datatypes.JSON
	LLMOutput        string

	Score       float64
	AnswerScore float64

	LatencyMs int64
	Error     sql.NullString

	CreationTime time.Time `gorm:"index"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&RewardRecord{}); err != nil {
		return fmt.Errorf("error creating reward_records table: %w", err)
	}
	return nil
}
