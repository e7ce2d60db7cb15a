package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"rl-verifier/internal/utils"

	"github.com/schollz/progressbar/v3"
)

type BatchItem struct {
	LLMOutput        string
	VerificationInfo any
}

type BatchOptions struct {
	MaxWorkers   int
	DefaultValue float64
	ProgressBar  bool
}

var ErrEmptyBatch = errors.New("batch must contain at least one item")

// VerifyBatch scores items concurrently. Failed items get opts.DefaultValue, so the
// only error is an empty batch. Scores are returned in input order.
func (c *Client) VerifyBatch(ctx context.Context, items []BatchItem, opts BatchOptions) ([]float64, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrRLVerifier, ErrEmptyBatch)
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 5
	}

	var bar *progressbar.ProgressBar
	if opts.ProgressBar {
		bar = progressbar.NewOptions(len(items),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("⏳ verifying"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	scores, errs := utils.Map(ctx, items, opts.MaxWorkers, func(ctx context.Context, item BatchItem) (float64, error) {
		score := c.VerifySafe(ctx, item.LLMOutput, item.VerificationInfo, opts.DefaultValue)
		if bar != nil {
			_ = bar.Add(1)
		}
		return score, nil
	})

	for i, err := range errs {
		if err != nil {
			slog.Error("error processing batch item", "index", i, "error", err)
			scores[i] = opts.DefaultValue
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	return scores, nil
}
