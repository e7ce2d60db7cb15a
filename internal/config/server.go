package config

import (
	"fmt"
	"log"

	"rl-verifier/internal/verifier"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port          int    `env:"PORT" envDefault:"8000"`
	AppDataDir    string `env:"APP_DATA_DIR" envDefault:"./rl-verifier-data"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RabbitMQURL   string `env:"RABBITMQ_URL"`
	RecordRewards bool   `env:"RECORD_REWARDS" envDefault:"true"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	UseFormatVerifier bool   `env:"USE_FORMAT_VERIFIER" envDefault:"true"`
	FusionSandboxURL  string `env:"FUSION_SANDBOX_URL"`

	LLMJudgeModel       string  `env:"LLM_JUDGE_MODEL"`
	LLMJudgeBaseURL     string  `env:"LLM_JUDGE_BASE_URL"`
	LLMJudgeAPIKey      string  `env:"LLM_JUDGE_API_KEY" envDefault:"EMPTY"`
	LLMJudgeMaxTokens   int64   `env:"LLM_JUDGE_MAX_TOKENS" envDefault:"100"`
	LLMJudgeTemperature float64 `env:"LLM_JUDGE_TEMPERATURE" envDefault:"0"`
}

// LoadEnvFile loads path into the environment. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("error parsing server config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	return cfg, nil
}

func (c ServerConfig) VerifierSettings() verifier.Settings {
	return verifier.Settings{
		FusionSandboxURL:  c.FusionSandboxURL,
		UseFormatVerifier: c.UseFormatVerifier,
		Judge: verifier.JudgeConfig{
			Model:       c.LLMJudgeModel,
			BaseURL:     c.LLMJudgeBaseURL,
			APIKey:      c.LLMJudgeAPIKey,
			MaxTokens:   c.LLMJudgeMaxTokens,
			Temperature: c.LLMJudgeTemperature,
		},
	}
}
