package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Gemini struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	ThinkingBudget int    `yaml:"thinking_budget"`
}

type Pipeline struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	SkipHeader     bool          `yaml:"skip_header"`
}

type Output struct {
	Locale         string `yaml:"locale"`
	IncludeSources bool   `yaml:"include_sources"`
}

type Store struct {
	// Path of the sqlite run journal. Empty disables the journal.
	Path string `yaml:"path"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Config is the resolved enricher configuration.
type Config struct {
	Gemini   Gemini   `yaml:"gemini"`
	Pipeline Pipeline `yaml:"pipeline"`
	Output   Output   `yaml:"output"`
	Store    Store    `yaml:"store"`
	Log      Log      `yaml:"log"`
}

// Default returns the built-in settings: one company at a time, no retries,
// no request timeout, English headers.
func Default() Config {
	return Config{
		Gemini: Gemini{
			Model:          "gemini-2.5-pro",
			ThinkingBudget: 32768,
		},
		Pipeline: Pipeline{
			Workers: 1,
		},
		Output: Output{
			Locale: "en",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load resolves defaults, then the YAML file at path (if non-empty), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %q not found", path)
			}
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	envString("GEMINI_MODEL", &cfg.Gemini.Model)
	envString("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	envString("OUTPUT_LOCALE", &cfg.Output.Locale)
	envString("STORE_PATH", &cfg.Store.Path)
	envString("LOG_LEVEL", &cfg.Log.Level)

	var err error
	if cfg.Gemini.ThinkingBudget, err = envInt("GEMINI_THINKING_BUDGET", cfg.Gemini.ThinkingBudget); err != nil {
		return err
	}
	if cfg.Pipeline.Workers, err = envInt("WORKERS", cfg.Pipeline.Workers); err != nil {
		return err
	}
	if cfg.Pipeline.MaxRetries, err = envInt("MAX_RETRIES", cfg.Pipeline.MaxRetries); err != nil {
		return err
	}
	if cfg.Pipeline.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.Pipeline.RequestTimeout); err != nil {
		return err
	}
	if cfg.Pipeline.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.Pipeline.RateLimitRPS); err != nil {
		return err
	}
	if cfg.Pipeline.SkipHeader, err = envBool("SKIP_HEADER", cfg.Pipeline.SkipHeader); err != nil {
		return err
	}
	if cfg.Output.IncludeSources, err = envBool("INCLUDE_SOURCES", cfg.Output.IncludeSources); err != nil {
		return err
	}
	return nil
}

// Validate rejects values the pipeline cannot run with. A missing API key is
// not checked here; the enrichment client reports it.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.Pipeline.RateLimitRPS)
	}
	switch strings.ToLower(strings.TrimSpace(c.Output.Locale)) {
	case "en", "ru":
	default:
		return fmt.Errorf("unsupported output locale %q (want en or ru)", c.Output.Locale)
	}
	return nil
}

func envString(varName string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
