package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("reward record not found")

func SaveRewardRecord(ctx context.Context, db *gorm.DB, record *RewardRecord) error {
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		slog.Error("error saving reward record", "record_id", record.Id, "error", err)
		return fmt.Errorf("error saving reward record: %w", err)
	}
	return nil
}

func GetRewardRecord(ctx context.Context, db *gorm.DB, id uuid.UUID) (RewardRecord, error) {
	var record RewardRecord
	if err := db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RewardRecord{}, ErrRecordNotFound
		}
		slog.Error("error getting reward record", "record_id", id, "error", err)
		return RewardRecord{}, fmt.Errorf("error getting reward record: %w", err)
	}
	return record, nil
}

type ListOptions struct {
	VerificationType string
	Limit            int
	Offset           int
}

// ListRewardRecords returns records newest first.
func ListRewardRecords(ctx context.Context, db *gorm.DB, opts ListOptions) ([]RewardRecord, error) {
	query := db.WithContext(ctx).Order("creation_time DESC")
	if opts.VerificationType != "" {
		query = query.Where("verification_type = ?", opts.VerificationType)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var records []RewardRecord
	if err := query.Find(&records).Error; err != nil {
		slog.Error("error listing reward records", "error", err)
		return nil, fmt.Errorf("error listing reward records: %w", err)
	}
	return records, nil
}

func RewardStatsByType(ctx context.Context, db *gorm.DB) ([]RewardStats, error) {
	var stats []RewardStats
	if err := db.WithContext(ctx).
		Model(&RewardRecord{}).
		Select("verification_type, COUNT(*) AS count, " +
			"SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END) AS failures, " +
			"COALESCE(AVG(CASE WHEN error IS NULL THEN score END), 0) AS mean_score, " +
			"COALESCE(AVG(latency_ms), 0) AS mean_latency_ms").
		Group("verification_type").
		Order("verification_type").
		Scan(&stats).Error; err != nil {
		slog.Error("error computing reward stats", "error", err)
		return nil, fmt.Errorf("error computing reward stats: %w", err)
	}
	return stats, nil
}
