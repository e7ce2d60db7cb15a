package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"rl-verifier/pkg/api"

	"github.com/go-resty/resty/v2"
)

const pingTimeout = 5 * time.Second

type Options struct {
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	baseURLs []string
	http     *resty.Client
}

// New connects to every base url and fails if any of them does not answer /ping.
func New(ctx context.Context, baseURLs []string, opts Options) (*Client, error) {
	if len(baseURLs) == 0 {
		return nil, fmt.Errorf("%w: at least one base url is required", ErrRLVerifier)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		http: resty.New().SetTimeout(opts.Timeout).SetRetryCount(max(opts.MaxRetries, 0)),
	}
	for _, u := range baseURLs {
		c.baseURLs = append(c.baseURLs, strings.TrimRight(u, "/"))
	}

	for _, u := range c.baseURLs {
		if err := c.ping(ctx, u); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) BaseURLs() []string {
	return c.baseURLs
}

func (c *Client) ping(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := c.http.R().SetContext(ctx).Get(baseURL + "/ping")
	if err != nil {
		return fmt.Errorf("%w: failed to connect %s: %v", ErrRLVerifier, baseURL, err)
	}
	if res.StatusCode() != 200 {
		return fmt.Errorf("%w: failed to connect %s: %s", ErrRLVerifier, baseURL, res.String())
	}
	return nil
}

// Ping checks every configured base url.
func (c *Client) Ping(ctx context.Context) error {
	for _, u := range c.baseURLs {
		if err := c.ping(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// Verify returns the reward for llmOutput. info is either a JSON string or a value
// that marshals to a JSON object with type and answer fields.
func (c *Client) Verify(ctx context.Context, llmOutput string, info any) (float64, error) {
	infoStr, err := encodeVerificationInfo(info)
	if err != nil {
		return 0, err
	}

	baseURL := c.baseURLs[rand.Intn(len(c.baseURLs))]

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(api.RewardRequest{LLMOutput: llmOutput, VerificationInfo: infoStr}).
		Post(baseURL + "/reward")
	if err != nil {
		if isTimeout(err) {
			return 0, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: failed to connect to %s: %v", ErrConnection, baseURL, err)
	}

	switch {
	case res.StatusCode() == 422:
		return 0, fmt.Errorf("%w: %s", ErrValidation, res.String())
	case res.StatusCode() == 400:
		return 0, fmt.Errorf("%w: %s", ErrVerification, res.String())
	case !res.IsSuccess():
		return 0, fmt.Errorf("%w: status %d: %s", ErrServer, res.StatusCode(), res.String())
	}

	var body api.RewardResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return 0, fmt.Errorf("%w: failed to parse response as JSON: %s", ErrServer, res.String())
	}

	return body.Score, nil
}

// VerifySafe is Verify that logs any error and returns defaultValue instead.
func (c *Client) VerifySafe(ctx context.Context, llmOutput string, info any, defaultValue float64) float64 {
	score, err := c.Verify(ctx, llmOutput, info)
	if err != nil {
		slog.Warn("verification error, using default score", "default", defaultValue, "error", err)
		return defaultValue
	}
	return score
}

func encodeVerificationInfo(info any) (string, error) {
	switch v := info.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return "", fmt.Errorf("%w: verification info is not valid JSON", ErrValidation)
		}
		return v, nil
	case json.RawMessage:
		if !json.Valid(v) {
			return "", fmt.Errorf("%w: verification info is not valid JSON", ErrValidation)
		}
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: verification info is not JSON serializable: %v", ErrValidation, err)
		}
		return string(data), nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
