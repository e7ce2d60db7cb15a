package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid reward_api config")

type RewardAPIConfig struct {
	Enable                 bool    `yaml:"enable"`
	APIURL                 string  `yaml:"api_url"`
	MaxWorkers             int     `yaml:"max_workers"`
	Timeout                int     `yaml:"timeout"`
	VerificationInfoColumn string  `yaml:"verification_info_column"`
	SaveDir                string  `yaml:"save_dir"`
	SaveFreq               int     `yaml:"save_freq"`
	DefaultScore           float64 `yaml:"default_score"`
	MaxRetries             int     `yaml:"max_retries"`
	ProgressBar            bool    `yaml:"progress_bar"`
}

// TrainingConfig is the part of a training YAML document this module reads.
// Other top level keys are ignored.
type TrainingConfig struct {
	RewardAPI RewardAPIConfig `yaml:"reward_api"`
}

func DefaultRewardAPIConfig() RewardAPIConfig {
	return RewardAPIConfig{
		Enable:                 false,
		MaxWorkers:             5,
		Timeout:                30,
		VerificationInfoColumn: "verification_info",
		SaveFreq:               1,
		DefaultScore:           0,
		MaxRetries:             0,
		ProgressBar:            false,
	}
}

func ParseTrainingConfig(data []byte) (TrainingConfig, error) {
	cfg := TrainingConfig{RewardAPI: DefaultRewardAPIConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TrainingConfig{}, fmt.Errorf("error parsing training config: %w", err)
	}

	if err := cfg.RewardAPI.Validate(); err != nil {
		return TrainingConfig{}, err
	}

	return cfg, nil
}

func LoadTrainingConfig(path string) (TrainingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrainingConfig{}, fmt.Errorf("error reading training config %s: %w", path, err)
	}
	return ParseTrainingConfig(data)
}

func (c RewardAPIConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if len(c.APIURLs()) == 0 {
		return fmt.Errorf("%w: api_url is required when reward_api is enabled", ErrInvalidConfig)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("%w: max_workers must be positive, got %d", ErrInvalidConfig, c.MaxWorkers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidConfig, c.Timeout)
	}
	if c.SaveFreq < 1 {
		return fmt.Errorf("%w: save_freq must be at least 1, got %d", ErrInvalidConfig, c.SaveFreq)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries cannot be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.VerificationInfoColumn == "" {
		return fmt.Errorf("%w: verification_info_column cannot be empty", ErrInvalidConfig)
	}
	return nil
}

// APIURLs splits api_url on commas.
func (c RewardAPIConfig) APIURLs() []string {
	var urls []string
	for _, u := range strings.Split(c.APIURL, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (c RewardAPIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
