package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docsum/internal/summarizer"
	"docsum/internal/tokenizer"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token        string  `env:"TOKEN"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"        envDefault:"db.sqlite"`
	StorageURL   string  `env:"STORAGE_URL"    envDefault:"uploads"`
	HTTPAddr     string  `env:"HTTP_ADDR"      envDefault:":5000"`
	LogLevel     string  `env:"LOG_LEVEL"      envDefault:"info"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"16777216"`

	TokenizerPath  string `env:"TOKENIZER_PATH,required,notEmpty"`
	ModelMaxLength int    `env:"MODEL_MAX_LENGTH"                 envDefault:"1024"`
	SafetyMargin   int    `env:"SAFETY_MARGIN"                    envDefault:"50"`

	SummaryMinLength   int           `env:"SUMMARY_MIN_LENGTH"  envDefault:"25"`
	SummaryMaxLength   int           `env:"SUMMARY_MAX_LENGTH"  envDefault:"150"`
	SummarizeTimeout   time.Duration `env:"SUMMARIZE_TIMEOUT"   envDefault:"2m"`
	SummarizerProvider string        `env:"SUMMARIZER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIModel        string        `env:"OPENAI_MODEL"`
	HFEndpoint         string        `env:"HF_ENDPOINT"`
	HFToken            string        `env:"HF_TOKEN"`

	Retention time.Duration `env:"RETENTION" envDefault:"72h"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if _, err := c.WindowSize(); err != nil {
		errs = append(errs, err)
	}

	if c.SummaryMinLength < 0 || c.SummaryMaxLength < 1 || c.SummaryMinLength > c.SummaryMaxLength {
		errs = append(errs, fmt.Errorf("summary length bounds are invalid (min = %d, max = %d)",
			c.SummaryMinLength, c.SummaryMaxLength))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}

	if c.Retention < 0 {
		errs = append(errs, fmt.Errorf("RETENTION must not be negative, got %s", c.Retention))
	}

	switch strings.ToLower(c.SummarizerProvider) {
	case summarizer.ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case summarizer.ProviderHuggingFace:
		if strings.TrimSpace(c.HFEndpoint) == "" {
			errs = append(errs, errors.New("HF_ENDPOINT is required for the huggingface provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("SUMMARIZER_PROVIDER is unknown: %q", c.SummarizerProvider))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// WindowSize is the chunk size in tokens: the model input limit minus the
// safety margin.
func (c Config) WindowSize() (int, error) {
	return tokenizer.WindowSize(c.ModelMaxLength, c.SafetyMargin)
}

func (c Config) Summarizer() summarizer.Config {
	return summarizer.Config{
		Provider:     c.SummarizerProvider,
		OpenAIAPIKey: c.OpenAIAPIKey,
		OpenAIModel:  c.OpenAIModel,
		HFEndpoint:   c.HFEndpoint,
		HFToken:      c.HFToken,
	}
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
