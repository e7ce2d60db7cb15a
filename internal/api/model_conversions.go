package api

import (
	"rl-verifier/internal/database"
	"rl-verifier/pkg/api"
)

func convertRewardRecord(r database.RewardRecord) api.RewardRecord {
	record := api.RewardRecord{
		Id:               r.Id,
		VerificationType: r.VerificationType,
		Score:            r.Score,
		AnswerScore:      r.AnswerScore,
		LatencyMs:        r.LatencyMs,
		CreationTime:     r.CreationTime,
	}
	if r.FormatScore.Valid {
		formatScore := r.FormatScore.Float64
		record.FormatScore = &formatScore
	}
	if r.Error.Valid {
		record.Error = r.Error.String
	}
	return record
}

func convertRewardRecords(rs []database.RewardRecord) []api.RewardRecord {
	records := make([]api.RewardRecord, 0, len(rs))
	for _, r := range rs {
		records = append(records, convertRewardRecord(r))
	}
	return records
}

func convertRewardStats(ss []database.RewardStats) []api.RewardStats {
	stats := make([]api.RewardStats, 0, len(ss))
	for _, s := range ss {
		stats = append(stats, api.RewardStats{
			VerificationType: s.VerificationType,
			Count:            s.Count,
			Failures:         s.Failures,
			MeanScore:        s.MeanScore,
			MeanLatencyMs:    s.MeanLatencyMs,
		})
	}
	return stats
}
