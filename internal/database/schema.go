package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RewardRecord struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	VerificationType string `gorm:"size:40;not null;index"`
	VerificationInfo datatypes.JSON
	LLMOutput        string

	Score       float64
	AnswerScore float64
	FormatScore sql.NullFloat64

	LatencyMs int64
	Error     sql.NullString

	CreationTime time.Time `gorm:"index"`
}

type RewardStats struct {
	VerificationType string
	Count            int64
	Failures         int64
	MeanScore        float64
	MeanLatencyMs    float64
}
