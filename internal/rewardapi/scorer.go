package rewardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rl-verifier/internal/client"
	"rl-verifier/internal/config"
	"rl-verifier/internal/storage"
)

var (
	ErrDisabled                = errors.New("reward_api is not enabled")
	ErrMissingVerificationInfo = errors.New("sample is missing verification info")
)

type Sample struct {
	Prompt     string
	Completion string
	Row        map[string]any
}

type Record struct {
	Step             int             `json:"step"`
	Index            int             `json:"index"`
	Prompt           string          `json:"prompt,omitempty"`
	Completion       string          `json:"completion"`
	VerificationInfo json.RawMessage `json:"verification_info"`
	Score            float64         `json:"score"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Scorer is the trainer side reward function. Every call to Score is one
// training step.
type Scorer struct {
	cfg    config.RewardAPIConfig
	client *client.Client
	store  storage.Provider

	mu      sync.Mutex
	step    int
	pending []Record
}

// NewScorer connects to the reward servers in cfg. Records are only persisted when
// cfg.SaveDir is set; s3 paths use s3cfg.
func NewScorer(ctx context.Context, cfg config.RewardAPIConfig, s3cfg storage.S3ClientConfig) (*Scorer, error) {
	if !cfg.Enable {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := client.New(ctx, cfg.APIURLs(), client.Options{Timeout: cfg.RequestTimeout(), MaxRetries: cfg.MaxRetries})
	if err != nil {
		return nil, fmt.Errorf("error connecting to reward api: %w", err)
	}

	scorer := &Scorer{cfg: cfg, client: c}

	if cfg.SaveDir != "" {
		store, err := storage.NewProviderForPath(ctx, cfg.SaveDir, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("error opening reward save dir %s: %w", cfg.SaveDir, err)
		}
		scorer.store = store
	}

	slog.Info("reward api scorer ready", "urls", c.BaseURLs(), "max_workers", cfg.MaxWorkers, "save_dir", cfg.SaveDir)

	return scorer, nil
}

func (s *Scorer) verificationInfo(sample Sample) (any, error) {
	value, ok := sample.Row[s.cfg.VerificationInfoColumn]
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: column %q", ErrMissingVerificationInfo, s.cfg.VerificationInfoColumn)
	}
	return value, nil
}

// Score returns one reward per sample in input order. Requests that fail get
// default_score.
func (s *Scorer) Score(ctx context.Context, samples []Sample) ([]float64, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	items := make([]client.BatchItem, 0, len(samples))
	for i, sample := range samples {
		info, err := s.verificationInfo(sample)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		items = append(items, client.BatchItem{LLMOutput: sample.Completion, VerificationInfo: info})
	}

	scores, err := s.client.VerifyBatch(ctx, items, client.BatchOptions{
		MaxWorkers:   s.cfg.MaxWorkers,
		DefaultValue: s.cfg.DefaultScore,
		ProgressBar:  s.cfg.ProgressBar,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.step++
	if s.store != nil {
		now := time.Now().UTC()
		for i, sample := range samples {
			s.pending = append(s.pending, Record{
				Step:             s.step,
				Index:            i,
				Prompt:           sample.Prompt,
				Completion:       sample.Completion,
				VerificationInfo: rawInfo(items[i].VerificationInfo),
				Score:            scores[i],
				Timestamp:        now,
			})
		}

		if s.step%s.cfg.SaveFreq == 0 {
			if err := s.flush(ctx); err != nil {
				return scores, err
			}
		}
	}

	return scores, nil
}

func (s *Scorer) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func rawInfo(info any) json.RawMessage {
	if str, ok := info.(string); ok {
		if json.Valid([]byte(str)) {
			return json.RawMessage(str)
		}
		info = str
	}
	data, err := json.Marshal(info)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func StepObjectName(step int) string {
	return fmt.Sprintf("rewards_step_%06d.jsonl", step)
}

func (s *Scorer) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	for _, record := range s.pending {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("error encoding reward record: %w", err)
		}
	}

	name := StepObjectName(s.step)
	if err := s.store.PutObject(ctx, name, buf); err != nil {
		slog.Error("error saving reward records", "object", name, "error", err)
		return fmt.Errorf("error saving reward records to %s: %w", name, err)
	}

	slog.Info("saved reward records", "object", name, "records", len(s.pending))
	s.pending = s.pending[:0]

	return nil
}

// Close writes any records buffered since the last save.
func (s *Scorer) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.flush(ctx)
}
