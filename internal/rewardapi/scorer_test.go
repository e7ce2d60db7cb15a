package rewardapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"rl-verifier/internal/config"
	"rl-verifier/internal/rewardapi"
	"rl-verifier/internal/storage"
	"rl-verifier/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRewardServer scores 1 when the completion equals the answer in the
// verification info.
func newRewardServer(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.PingResponse{Status: "ok", Message: "pong"})
	})
	r.Post("/reward", func(w http.ResponseWriter, r *http.Request) {
		var req api.RewardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		var info struct {
			Type   string `json:"type"`
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal([]byte(req.VerificationInfo), &info); err != nil || info.Type != "math" {
			http.Error(w, "invalid verification info", http.StatusUnprocessableEntity)
			return
		}
		score := 0.0
		if req.LLMOutput == info.Answer {
			score = 1
		}
		_ = json.NewEncoder(w).Encode(api.RewardResponse{Score: score})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func newConfig(url, saveDir string) config.RewardAPIConfig {
	cfg := config.DefaultRewardAPIConfig()
	cfg.Enable = true
	cfg.APIURL = url
	cfg.SaveDir = saveDir
	cfg.SaveFreq = 2
	cfg.DefaultScore = -1
	return cfg
}

func sample(completion string, info any) rewardapi.Sample {
	return rewardapi.Sample{
		Prompt:     "what is 1+1?",
		Completion: completion,
		Row:        map[string]any{"verification_info": info},
	}
}

func readRecords(t *testing.T, path string) []rewardapi.Record {
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []rewardapi.Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record rewardapi.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestNewScorerDisabled(t *testing.T) {
	_, err := rewardapi.NewScorer(context.Background(), config.DefaultRewardAPIConfig(), storage.S3ClientConfig{})
	assert.ErrorIs(t, err, rewardapi.ErrDisabled)
}

func TestScorerScoresAndSaves(t *testing.T) {
	server := newRewardServer(t)
	saveDir := t.TempDir()
	ctx := context.Background()

	scorer, err := rewardapi.NewScorer(ctx, newConfig(server.URL, saveDir), storage.S3ClientConfig{})
	require.NoError(t, err)

	scores, err := scorer.Score(ctx, []rewardapi.Sample{
		sample("2", `{"type": "math", "answer": "2"}`),
		sample("3", map[string]any{"type": "math", "answer": "2"}),
		sample("2", `{"type": "unknown"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, -1}, scores)

	// Nothing is written before save_freq steps.
	entries, err := os.ReadDir(saveDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	scores, err = scorer.Score(ctx, []rewardapi.Sample{sample("2", `{"type": "math", "answer": "2"}`)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, scores)

	records := readRecords(t, filepath.Join(saveDir, rewardapi.StepObjectName(2)))
	require.Len(t, records, 4)
	assert.Equal(t, 1, records[0].Step)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "3", records[1].Completion)
	assert.Equal(t, 0.0, records[1].Score)
	assert.JSONEq(t, `{"type": "math", "answer": "2"}`, string(records[1].VerificationInfo))
	assert.Equal(t, 2, records[3].Step)

	_, err = scorer.Score(ctx, []rewardapi.Sample{sample("2", `{"type": "math", "answer": "2"}`)})
	require.NoError(t, err)
	require.NoError(t, scorer.Close(ctx))
	assert.Equal(t, 3, scorer.Step())

	records = readRecords(t, filepath.Join(saveDir, rewardapi.StepObjectName(3)))
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Step)
}

func TestScorerMissingVerificationInfo(t *testing.T) {
	server := newRewardServer(t)
	ctx := context.Background()

	scorer, err := rewardapi.NewScorer(ctx, newConfig(server.URL, ""), storage.S3ClientConfig{})
	require.NoError(t, err)

	_, err = scorer.Score(ctx, []rewardapi.Sample{
		sample("2", `{"type": "math", "answer": "2"}`),
		{Completion: "2", Row: map[string]any{"other": "x"}},
	})
	assert.ErrorIs(t, err, rewardapi.ErrMissingVerificationInfo)
	assert.Equal(t, 0, scorer.Step())
	assert.NoError(t, scorer.Close(ctx))
}

func TestReadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	data := bytes.Join([][]byte{
		[]byte(`{"prompt": "p1", "completion": "2", "verification_info": {"type": "math", "answer": "2"}}`),
		[]byte(``),
		[]byte(`{"prompt": "p2", "completion": "5", "verification_info": "{\"type\": \"math\", \"answer\": \"4\"}"}`),
	}, []byte("\n"))
	require.NoError(t, os.WriteFile(path, data, 0644))

	rows, err := rewardapi.ReadDataset(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	samples, err := rewardapi.SamplesFromRows(rows, "completion", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "p2", samples[1].Prompt)
	assert.Equal(t, "5", samples[1].Completion)

	_, err = rewardapi.SamplesFromRows(rows, "response", "prompt")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0644))
	_, err = rewardapi.ReadDataset(path)
	assert.Error(t, err)
}

func TestScoreDatasetEndToEnd(t *testing.T) {
	server := newRewardServer(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"completion": "2", "verification_info": {"type": "math", "answer": "2"}}`+"\n"+
			`{"completion": "5", "verification_info": {"type": "math", "answer": "4"}}`+"\n"), 0644))

	rows, err := rewardapi.ReadDataset(path)
	require.NoError(t, err)
	samples, err := rewardapi.SamplesFromRows(rows, "completion", "")
	require.NoError(t, err)

	scorer, err := rewardapi.NewScorer(ctx, newConfig(server.URL, ""), storage.S3ClientConfig{})
	require.NoError(t, err)

	scores, err := scorer.Score(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}
