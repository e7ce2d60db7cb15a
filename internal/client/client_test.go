package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rl-verifier/internal/client"
	"rl-verifier/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	requests atomic.Int64
}

// handleReward answers based on the verification info type so tests can drive
// every status code the client maps.
func (s *fakeServer) handleReward(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	var req api.RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var info struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(req.VerificationInfo), &info); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	switch info.Type {
	case "math":
		score := 0.0
		if req.LLMOutput == "correct" {
			score = 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.RewardResponse{Score: score})
	case "code":
		http.Error(w, "sandbox unavailable", http.StatusBadRequest)
	case "slow":
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(api.RewardResponse{Score: 1})
	case "garbage":
		_, _ = w.Write([]byte("not json"))
	case "crash":
		http.Error(w, "boom", http.StatusInternalServerError)
	default:
		http.Error(w, "unsupported type", http.StatusUnprocessableEntity)
	}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	s := &fakeServer{}
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.PingResponse{Status: "ok", Message: "pong"})
	})
	r.Post("/reward", s.handleReward)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return s, server
}

func newClient(t *testing.T, urls ...string) *client.Client {
	c, err := client.New(context.Background(), urls, client.Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestNewTrimsAndPings(t *testing.T) {
	_, server := newFakeServer(t)

	c := newClient(t, server.URL+"/", server.URL+"//")
	assert.Equal(t, []string{server.URL, server.URL}, c.BaseURLs())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNewFailsOnBadServer(t *testing.T) {
	_, server := newFakeServer(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	_, err := client.New(context.Background(), []string{server.URL, broken.URL}, client.Options{})
	assert.ErrorIs(t, err, client.ErrRLVerifier)

	_, err = client.New(context.Background(), nil, client.Options{})
	assert.ErrorIs(t, err, client.ErrRLVerifier)
}

func TestVerify(t *testing.T) {
	_, server := newFakeServer(t)
	c := newClient(t, server.URL)
	ctx := context.Background()

	score, err := c.Verify(ctx, "correct", `{"type": "math", "answer": "1"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	score, err = c.Verify(ctx, "wrong", map[string]any{"type": "math", "answer": "1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	score, err = c.Verify(ctx, "correct", json.RawMessage(`{"type": "math", "answer": "1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestVerifyErrors(t *testing.T) {
	s, server := newFakeServer(t)
	c := newClient(t, server.URL)
	ctx := context.Background()

	cases := []struct {
		info any
		err  error
	}{
		{info: `{"type": "unknown"}`, err: client.ErrValidation},
		{info: `{"type": "code"}`, err: client.ErrVerification},
		{info: `{"type": "crash"}`, err: client.ErrServer},
		{info: `{"type": "garbage"}`, err: client.ErrServer},
		{info: `{"type": "slow"}`, err: client.ErrTimeout},
	}
	for _, tc := range cases {
		_, err := c.Verify(ctx, "out", tc.info)
		assert.ErrorIs(t, err, tc.err, tc.info)
		assert.ErrorIs(t, err, client.ErrRLVerifier, tc.info)
	}

	before := s.requests.Load()
	_, err := c.Verify(ctx, "out", "{not json")
	assert.ErrorIs(t, err, client.ErrValidation)
	_, err = c.Verify(ctx, "out", map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, before, s.requests.Load(), "invalid info must not reach the server")
}

func TestVerifyConnectionError(t *testing.T) {
	_, server := newFakeServer(t)
	c := newClient(t, server.URL)
	server.Close()

	_, err := c.Verify(context.Background(), "out", `{"type": "math"}`)
	assert.ErrorIs(t, err, client.ErrConnection)

	assert.Equal(t, 0.25, c.VerifySafe(context.Background(), "out", `{"type": "math"}`, 0.25))
}

func TestVerifyBatch(t *testing.T) {
	_, server := newFakeServer(t)
	c := newClient(t, server.URL, server.URL)

	math := map[string]string{"type": "math", "answer": "1"}
	items := []client.BatchItem{
		{LLMOutput: "correct", VerificationInfo: math},
		{LLMOutput: "wrong", VerificationInfo: math},
		{LLMOutput: "correct", VerificationInfo: `{"type": "code"}`},
		{LLMOutput: "correct", VerificationInfo: `{"type": "math", "answer": "1"}`},
		{LLMOutput: "correct", VerificationInfo: "not json"},
	}

	scores, err := c.VerifyBatch(context.Background(), items, client.BatchOptions{MaxWorkers: 3, DefaultValue: -1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, -1, 1, -1}, scores)

	_, err = c.VerifyBatch(context.Background(), nil, client.BatchOptions{})
	assert.ErrorIs(t, err, client.ErrEmptyBatch)
}
