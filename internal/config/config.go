// Package config loads the anonymizer configuration from defaults, an
// optional YAML or JSON file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "CV_ANONYMIZER"

// OCR providers
const (
	OCRProviderMistral = "mistral"
	OCRProviderLocal   = "local"
)

// Config holds all configuration for the anonymizer
type Config struct {
	GeminiAPIKey  string         `mapstructure:"gemini_api_key"`
	GeminiModel   string         `mapstructure:"gemini_model"`
	MistralAPIKey string         `mapstructure:"mistral_api_key"`
	OCR           OCRConfig      `mapstructure:"ocr"`
	Upload        UploadConfig   `mapstructure:"upload"`
	Analysis      AnalysisConfig `mapstructure:"analysis"`
	Pipeline      PipelineConfig `mapstructure:"pipeline"`
	Server        ServerConfig   `mapstructure:"server"`
	Log           LogConfig      `mapstructure:"log"`
}

// OCRConfig selects and configures the text extraction provider
type OCRConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

// UploadConfig bounds accepted documents
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// AnalysisConfig configures the AI analysis call
type AnalysisConfig struct {
	MaxInputChars int `mapstructure:"max_input_chars"`
}

// PipelineConfig holds pipeline timing
type PipelineConfig struct {
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`
	SessionTTL          time.Duration `mapstructure:"session_ttl"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	MaxInFlight    int      `mapstructure:"max_in_flight"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. When path is empty, cv-anonymizer.{yaml,json}
// is looked up in the working directory and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the credentials are also accepted under their conventional names
	_ = v.BindEnv("gemini_api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("mistral_api_key", EnvPrefix+"_MISTRAL_API_KEY", "MISTRAL_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("cv-anonymizer")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("mistral_api_key", "")

	v.SetDefault("ocr.provider", OCRProviderMistral)
	v.SetDefault("ocr.base_url", "https://api.mistral.ai")
	v.SetDefault("ocr.model", "mistral-ocr-latest")

	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("analysis.max_input_chars", 3000)

	v.SetDefault("pipeline.collaborator_timeout", 2*time.Minute)
	v.SetDefault("pipeline.session_ttl", time.Hour)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_in_flight", 8)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks enumerations and bounds. Missing credentials are not an
// error here: the affected stage reports itself unavailable instead.
func (c *Config) Validate() error {
	switch c.OCR.Provider {
	case OCRProviderMistral, OCRProviderLocal:
	default:
		return fmt.Errorf("config error: 'ocr.provider' must be %q or %q, got %q", OCRProviderMistral, OCRProviderLocal, c.OCR.Provider)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("config error: 'upload.max_bytes' must be positive")
	}
	if c.Analysis.MaxInputChars <= 0 {
		return fmt.Errorf("config error: 'analysis.max_input_chars' must be positive")
	}
	if c.Pipeline.CollaboratorTimeout < 0 {
		return fmt.Errorf("config error: 'pipeline.collaborator_timeout' must not be negative")
	}
	if c.Pipeline.SessionTTL <= 0 {
		return fmt.Errorf("config error: 'pipeline.session_ttl' must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}
	if c.Server.MaxInFlight <= 0 {
		return fmt.Errorf("config error: 'server.max_in_flight' must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config error: 'log.format' must be console or json, got %q", c.Log.Format)
	}
	return nil
}
