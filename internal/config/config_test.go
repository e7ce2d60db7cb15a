package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingYAML = `
model:
  name: deepseek-r1-distill
algorithm: grpo
reward_api:
  enable: true
  api_url: "http://verifier-0:8000, http://verifier-1:8000"
  max_workers: 16
  timeout: 60
  verification_info_column: meta
  save_dir: s3://rewards/run-1
  save_freq: 10
`

func TestParseTrainingConfig(t *testing.T) {
	cfg, err := ParseTrainingConfig([]byte(trainingYAML))
	require.NoError(t, err)

	r := cfg.RewardAPI
	assert.True(t, r.Enable)
	assert.Equal(t, []string{"http://verifier-0:8000", "http://verifier-1:8000"}, r.APIURLs())
	assert.Equal(t, 16, r.MaxWorkers)
	assert.Equal(t, 60*time.Second, r.RequestTimeout())
	assert.Equal(t, "meta", r.VerificationInfoColumn)
	assert.Equal(t, "s3://rewards/run-1", r.SaveDir)
	assert.Equal(t, 10, r.SaveFreq)
	assert.Equal(t, 0.0, r.DefaultScore)
	assert.False(t, r.ProgressBar)
}

func TestParseTrainingConfigDefaults(t *testing.T) {
	cfg, err := ParseTrainingConfig([]byte("reward_api:\n  enable: true\n  api_url: http://localhost:8000\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RewardAPI.MaxWorkers)
	assert.Equal(t, 30, cfg.RewardAPI.Timeout)
	assert.Equal(t, "verification_info", cfg.RewardAPI.VerificationInfoColumn)
	assert.Equal(t, 1, cfg.RewardAPI.SaveFreq)

	cfg, err = ParseTrainingConfig([]byte("algorithm: ppo\n"))
	require.NoError(t, err)
	assert.False(t, cfg.RewardAPI.Enable)
}

func TestParseTrainingConfigValidation(t *testing.T) {
	invalid := []string{
		"reward_api:\n  enable: true\n",
		"reward_api:\n  enable: true\n  api_url: ' , '\n",
		"reward_api:\n  enable: true\n  api_url: http://x\n  max_workers: 0\n",
		"reward_api:\n  enable: true\n  api_url: http://x\n  timeout: -1\n",
		"reward_api:\n  enable: true\n  api_url: http://x\n  save_freq: 0\n",
		"reward_api:\n  enable: true\n  api_url: http://x\n  max_retries: -2\n",
	}
	for _, doc := range invalid {
		_, err := ParseTrainingConfig([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidConfig, doc)
	}

	// A disabled block is not validated.
	_, err := ParseTrainingConfig([]byte("reward_api:\n  enable: false\n  max_workers: 0\n"))
	assert.NoError(t, err)

	_, err = ParseTrainingConfig([]byte("reward_api: [1, 2"))
	assert.Error(t, err)
}

func TestLoadTrainingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(trainingYAML), 0644))

	cfg, err := LoadTrainingConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.RewardAPI.Enable)

	_, err = LoadTrainingConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("USE_FORMAT_VERIFIER", "false")
	t.Setenv("FUSION_SANDBOX_URL", "http://sandbox:8080")
	t.Setenv("LLM_JUDGE_MODEL", "qwen-judge")
	t.Setenv("LLM_JUDGE_TEMPERATURE", "0.5")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.RecordRewards)
	assert.Equal(t, "EMPTY", cfg.LLMJudgeAPIKey)

	settings := cfg.VerifierSettings()
	assert.False(t, settings.UseFormatVerifier)
	assert.Equal(t, "http://sandbox:8080", settings.FusionSandboxURL)
	assert.Equal(t, "qwen-judge", settings.Judge.Model)
	assert.Equal(t, int64(100), settings.Judge.MaxTokens)
	assert.Equal(t, 0.5, settings.Judge.Temperature)

	t.Setenv("PORT", "not-a-port")
	_, err = LoadServerConfig()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RL_VERIFIER_TEST_VALUE=from-file\n"), 0644))
	t.Setenv("RL_VERIFIER_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("RL_VERIFIER_TEST_VALUE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("RL_VERIFIER_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
