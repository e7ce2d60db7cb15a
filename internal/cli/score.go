package cli

import (
	"fmt"
	"log/slog"

	"rl-verifier/internal/config"
	"rl-verifier/internal/rewardapi"
	"rl-verifier/internal/storage"

	"github.com/caarlos0/env/v11"
	urfave "github.com/urfave/cli/v2"
)

var (
	trainingConfigFlag = &urfave.PathFlag{
		Name:     "config",
		Usage:    "Training YAML with a reward_api block",
		Required: true,
	}

	datasetFlag = &urfave.PathFlag{
		Name:     "dataset",
		Usage:    "JSONL file with one completion per line",
		Required: true,
	}

	completionColumnFlag = &urfave.StringFlag{
		Name:  "completion-column",
		Usage: "Dataset column holding the LLM output",
		Value: "completion",
	}

	promptColumnFlag = &urfave.StringFlag{
		Name:  "prompt-column",
		Usage: "Dataset column holding the prompt (optional)",
		Value: "prompt",
	}

	batchSizeFlag = &urfave.IntFlag{
		Name:  "batch-size",
		Usage: "Samples per step, 0 scores the whole dataset as one step",
		Value: 0,
	}

	scoreCmd = &urfave.Command{
		Name:      "score",
		Usage:     "Score a dataset of completions through the reward_api settings of a training config",
		UsageText: `rlverify score --config train.yaml --dataset rollouts.jsonl --batch-size 64`,
		Action:    cmdScore,
		Flags: []urfave.Flag{
			trainingConfigFlag,
			datasetFlag,
			completionColumnFlag,
			promptColumnFlag,
			batchSizeFlag,
		},
	}
)

type scoreSummary struct {
	Samples   int       `json:"samples" yaml:"samples"`
	Steps     int       `json:"steps" yaml:"steps"`
	MeanScore float64   `json:"mean_score" yaml:"mean_score"`
	Scores    []float64 `json:"scores" yaml:"scores"`
	SaveDir   string    `json:"save_dir,omitempty" yaml:"save_dir,omitempty"`
}

func batches[T any](items []T, size int) [][]T {
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}

func cmdScore(c *urfave.Context) error {
	cfg, err := config.LoadTrainingConfig(c.Path(trainingConfigFlag.Name))
	if err != nil {
		return err
	}

	var s3cfg storage.S3ClientConfig
	if err := env.Parse(&s3cfg); err != nil {
		return fmt.Errorf("error parsing s3 config: %w", err)
	}

	rows, err := rewardapi.ReadDataset(c.Path(datasetFlag.Name))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("dataset %s is empty", c.Path(datasetFlag.Name))
	}

	samples, err := rewardapi.SamplesFromRows(rows, c.String(completionColumnFlag.Name), c.String(promptColumnFlag.Name))
	if err != nil {
		return err
	}

	scorer, err := rewardapi.NewScorer(c.Context, cfg.RewardAPI, s3cfg)
	if err != nil {
		return err
	}

	summary := scoreSummary{Samples: len(samples), SaveDir: cfg.RewardAPI.SaveDir}
	for _, batch := range batches(samples, c.Int(batchSizeFlag.Name)) {
		scores, err := scorer.Score(c.Context, batch)
		if err != nil {
			return fmt.Errorf("error scoring step %d: %w", scorer.Step()+1, err)
		}
		summary.Scores = append(summary.Scores, scores...)
		slog.Debug("scored step", "step", scorer.Step(), "samples", len(batch))
	}

	if err := scorer.Close(c.Context); err != nil {
		return err
	}

	summary.Steps = scorer.Step()
	total := 0.0
	for _, s := range summary.Scores {
		total += s
	}
	summary.MeanScore = total / float64(len(summary.Scores))

	return encode(summary)
}
