package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rl-verifier/internal/database"
	"rl-verifier/internal/messaging"
	"rl-verifier/internal/verifier"
	"rl-verifier/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type RewardService struct {
	registry  *verifier.Registry
	db        *gorm.DB
	publisher messaging.Publisher
}

// NewRewardService builds the HTTP service. A nil publisher disables reward
// recording, and a nil db disables the record endpoints.
func NewRewardService(registry *verifier.Registry, db *gorm.DB, publisher messaging.Publisher) *RewardService {
	return &RewardService{registry: registry, db: db, publisher: publisher}
}

func (s *RewardService) AddRoutes(r chi.Router) {
	r.Get("/ping", RestHandler(s.Ping))
	r.Post("/reward", RestHandler(s.Reward))

	if s.db != nil {
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", RestHandler(s.ListRewards))
			r.Get("/stats", RestHandler(s.RewardStats))
			r.Get("/{record_id}", RestHandler(s.GetReward))
		})
	}
}

func (s *RewardService) Ping(r *http.Request) (any, error) {
	return api.PingResponse{Status: "ok", Message: "RL Verifier service is running"}, nil
}

type rewardRequestBody struct {
	LLMOutput        *string `json:"llm_output"`
	VerificationInfo *string `json:"verification_info"`
}

func (s *RewardService) Reward(r *http.Request) (any, error) {
	body, err := ParseRequestWithCode[rewardRequestBody](r, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	if body.LLMOutput == nil || body.VerificationInfo == nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "request must contain 'llm_output' and 'verification_info' fields")
	}

	start := time.Now()

	info, err := verifier.ParseVerificationInfo(*body.VerificationInfo)
	if err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err)
	}

	result, err := s.registry.Score(r.Context(), *body.LLMOutput, info)

	s.publishEvent(r, *body.LLMOutput, *body.VerificationInfo, info.Type, result, err, time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, verifier.ErrUnsupportedType), errors.Is(err, verifier.ErrInvalidVerificationInfo):
			return nil, CodedError(http.StatusUnprocessableEntity, err)
		case errors.Is(err, verifier.ErrInitialization):
			return nil, CodedError(http.StatusBadRequest, err)
		default:
			return nil, CodedErrorf(http.StatusInternalServerError, "error computing reward: %w", err)
		}
	}

	slog.Debug("computed reward", "type", info.Type, "score", result.Score, "latency", time.Since(start))

	return api.RewardResponse{Score: result.Score}, nil
}

func (s *RewardService) publishEvent(r *http.Request, llmOutput, rawInfo, verificationType string, result verifier.Result, scoreErr error, latency time.Duration) {
	if s.publisher == nil {
		return
	}

	event := messaging.RewardEventPayload{
		Id:               uuid.New(),
		VerificationType: verificationType,
		LLMOutput:        llmOutput,
		Score:            result.Score,
		AnswerScore:      result.AnswerScore,
		FormatScore:      result.FormatScore,
		LatencyMs:        latency.Milliseconds(),
		CreationTime:     time.Now().UTC(),
	}
	if json.Valid([]byte(rawInfo)) {
		event.VerificationInfo = json.RawMessage(rawInfo)
	}
	if scoreErr != nil {
		event.Error = scoreErr.Error()
	}

	if err := s.publisher.PublishRewardEvent(r.Context(), event); err != nil {
		slog.Error("error publishing reward event", "type", verificationType, "error", err)
	}
}

func (s *RewardService) ListRewards(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListRewardsParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 || params.Offset < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit and offset must be non-negative")
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	params.Limit = min(params.Limit, maxListLimit)

	records, err := database.ListRewardRecords(r.Context(), s.db, database.ListOptions{
		VerificationType: params.Type,
		Limit:            params.Limit,
		Offset:           params.Offset,
	})
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving reward records")
	}

	return convertRewardRecords(records), nil
}

func (s *RewardService) RewardStats(r *http.Request) (any, error) {
	stats, err := database.RewardStatsByType(r.Context(), s.db)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error computing reward stats")
	}

	return convertRewardStats(stats), nil
}

func (s *RewardService) GetReward(r *http.Request) (any, error) {
	recordId, err := URLParamUUID(r, "record_id")
	if err != nil {
		return nil, err
	}

	record, err := database.GetRewardRecord(r.Context(), s.db, recordId)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "reward record %v not found", recordId)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving reward record")
	}

	return convertRewardRecord(record), nil
}
