package api

import (
	"time"

	"github.com/google/uuid"
)

type RewardRequest struct {
	LLMOutput        string `json:"llm_output"`
	VerificationInfo string `json:"verification_info"`
}

type RewardResponse struct {
	Score float64 `json:"score"`
}

type PingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type RewardRecord struct {
	Id               uuid.UUID `json:"id"`
	VerificationType string    `json:"verification_type"`
	Score            float64   `json:"score"`
	AnswerScore      float64   `json:"answer_score"`
	FormatScore      *float64  `json:"format_score,omitempty"`
	LatencyMs        int64     `json:"latency_ms"`
	Error            string    `json:"error,omitempty"`
	CreationTime     time.Time `json:"creation_time"`
}

type RewardStats struct {
	VerificationType string  `json:"verification_type"`
	Count            int64   `json:"count"`
	Failures         int64   `json:"failures"`
	MeanScore        float64 `json:"mean_score"`
	MeanLatencyMs    float64 `json:"mean_latency_ms"`
}

type ListRewardsParams struct {
	Type   string `schema:"type"`
	Limit  int    `schema:"limit"`
	Offset int    `schema:"offset"`
}
