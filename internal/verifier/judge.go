package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const judgePromptTemplate = `<Model Response>
%s
</Model Response>

<Reference Answer>
%s
</Reference Answer>

You are provided with a model-generated response (<Model Response>) and a reference answer (<Reference Answer>). Compare the model response with the reference answer and determine its correctness. Your task is to simply output "True" if the response is correct, and "False" otherwise`

type JudgeConfig struct {
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int64
	Temperature float64
}

// Completer answers a single user prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type OpenAICompleter struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAICompleter connects to an OpenAI compatible endpoint and checks that
// the configured model is served there.
func NewOpenAICompleter(ctx context.Context, cfg JudgeConfig) (*OpenAICompleter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set for LLM judge verifier", ErrInitialization)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: no model configured for LLM judge verifier", ErrInitialization)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	found := false
	iter := client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		if iter.Current().ID == cfg.Model {
			found = true
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: error listing models at base url '%s': %v", ErrInitialization, cfg.BaseURL, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: model %s is not available for LLM judge verifier at base url '%s'", ErrInitialization, cfg.Model, cfg.BaseURL)
	}

	return &OpenAICompleter{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	res, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("judge completion failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("judge completion returned no choices")
	}
	return res.Choices[0].Message.Content, nil
}

type LLMJudge struct {
	completer Completer
}

func NewLLMJudge(completer Completer) *LLMJudge {
	return &LLMJudge{completer: completer}
}

func (v *LLMJudge) Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error) {
	var answer valueAnswer
	if err := info.DecodeAnswer(&answer); err != nil {
		return 0, err
	}
	reference, err := answer.value(info.Type)
	if err != nil {
		return 0, err
	}

	reply, err := v.completer.Complete(ctx, fmt.Sprintf(judgePromptTemplate, llmOutput, reference))
	if err != nil {
		return 0, err
	}

	slog.Debug("llm judge reply", "reply", reply)

	if strings.Trim(strings.ToLower(strings.TrimSpace(reply)), `"`) == "true" {
		return 1, nil
	}
	return 0, nil
}
