package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rl-verifier/internal/utils"

	"github.com/go-resty/resty/v2"
)

const (
	defaultCodeLanguage    = "python"
	defaultSandboxTimeout  = 30 * time.Second
	defaultSandboxWorkers  = 5
	defaultSandboxAttempts = 1
	sandboxPingTimeout     = 5 * time.Second
)

type CodeVerifierConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Concurrency int
}

type CodeVerifier struct {
	client      *resty.Client
	concurrency int
}

type codeTestCase struct {
	Input  looseString `json:"input"`
	Output looseString `json:"output"`
}

type codeAnswer struct {
	TestCases []codeTestCase `json:"test_cases"`
	Language  string         `json:"language"`
}

type sandboxStdin struct {
	Stdin string `json:"stdin"`
}

type sandboxStdout struct {
	Stdout string `json:"stdout"`
}

type sandboxTest struct {
	Input  sandboxStdin  `json:"input"`
	Output sandboxStdout `json:"output"`
}

type sandboxProvidedData struct {
	Id      int           `json:"id"`
	Content string        `json:"content"`
	Test    []sandboxTest `json:"test"`
}

type sandboxTestConfig struct {
	DatasetType  string              `json:"dataset_type"`
	Language     string              `json:"language"`
	ProvidedData sandboxProvidedData `json:"provided_data"`
}

type sandboxSubmitRequest struct {
	Dataset    string            `json:"dataset"`
	Id         int               `json:"id"`
	Completion string            `json:"completion"`
	Config     sandboxTestConfig `json:"config"`
}

type sandboxSubmitResponse struct {
	Accepted bool `json:"accepted"`
	Tests    []struct {
		Passed bool `json:"passed"`
	} `json:"tests"`
}

// NewCodeVerifier checks that the Fusion Sandbox at cfg.BaseURL is reachable.
func NewCodeVerifier(ctx context.Context, cfg CodeVerifierConfig) (*CodeVerifier, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: Fusion Sandbox base URL cannot be empty", ErrInitialization)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSandboxTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultSandboxAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSandboxWorkers
	}

	ping := resty.New().SetBaseURL(baseURL).SetTimeout(sandboxPingTimeout)
	res, err := ping.R().SetContext(ctx).Get("/v1/ping")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect Fusion Sandbox at '%s': %v", ErrInitialization, baseURL, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: Fusion Sandbox at '%s' returned status %d", ErrInitialization, baseURL, res.StatusCode())
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxAttempts - 1)

	return &CodeVerifier{client: client, concurrency: cfg.Concurrency}, nil
}

func (v *CodeVerifier) Verify(ctx context.Context, llmOutput string, info VerificationInfo) (float64, error) {
	var answer codeAnswer
	if err := info.DecodeAnswer(&answer); err != nil {
		return 0, err
	}
	if len(answer.TestCases) == 0 {
		return 0, fmt.Errorf("%w: code answer must contain at least one test case", ErrInvalidVerificationInfo)
	}

	language := answer.Language
	if language == "" {
		language = defaultCodeLanguage
	}

	if _, ok := CodeBlock(llmOutput, language); !ok {
		return 0, nil
	}

	requests := make([]sandboxSubmitRequest, 0, len(answer.TestCases))
	for i, tc := range answer.TestCases {
		requests = append(requests, sandboxSubmitRequest{
			Dataset:    "custom_dataset",
			Id:         i,
			Completion: llmOutput,
			Config: sandboxTestConfig{
				DatasetType: "CommonOJDataset",
				Language:    language,
				ProvidedData: sandboxProvidedData{
					Id:      i,
					Content: "Optional: Problem description",
					Test: []sandboxTest{{
						Input:  sandboxStdin{Stdin: string(tc.Input)},
						Output: sandboxStdout{Stdout: string(tc.Output)},
					}},
				},
			},
		})
	}

	passed, errs := utils.Map(ctx, requests, v.concurrency, v.submit)

	nPassed, nFailed := 0, 0
	for i := range passed {
		if errs[i] != nil {
			nFailed++
			slog.Warn("sandbox submission failed", "test_case", i, "error", errs[i])
			continue
		}
		if passed[i] {
			nPassed++
		}
	}

	if nFailed == len(requests) {
		return 0, fmt.Errorf("all %d sandbox submissions failed: %w", nFailed, errs[0])
	}

	return float64(nPassed) / float64(len(requests)), nil
}

func (v *CodeVerifier) submit(ctx context.Context, req sandboxSubmitRequest) (bool, error) {
	var body sandboxSubmitResponse
	res, err := v.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		Post("/submit")
	if err != nil {
		return false, fmt.Errorf("error submitting test case %d: %w", req.Id, err)
	}
	if !res.IsSuccess() {
		return false, fmt.Errorf("sandbox returned status %d for test case %d: %s", res.StatusCode(), req.Id, res.String())
	}
	if len(body.Tests) == 0 {
		return false, fmt.Errorf("sandbox returned no test results for test case %d", req.Id)
	}
	return body.Tests[0].Passed, nil
}
