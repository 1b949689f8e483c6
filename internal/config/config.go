package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvUserAgent      = "NOTEBOOKLM_USER_AGENT"
	EnvTimeoutSeconds = "NOTEBOOKLM_TIMEOUT_SECONDS"
)

// Config holds defaults for every subcommand. Values only apply to flags
// that were not set on the command line.
type Config struct {
	URL       string `json:"url"`
	OutputDir string `json:"output_dir"`
	Report    string `json:"report"`
	// Crawl
	MaxPages       int      `json:"max_pages"`
	DelaySeconds   *float64 `json:"delay_seconds"`
	MaxConcurrency int      `json:"max_concurrency"`
	URLPrefix      string   `json:"url_prefix"`
	SitemapURL     string   `json:"sitemap_url"`
	UserAgent      string   `json:"user_agent"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	// Convert
	MaxWorkers   int      `json:"max_workers"`
	StripTags    []string `json:"strip_tags"`
	StripClasses []string `json:"strip_classes"`
	// Combine
	Separator      *string `json:"separator"`
	NoSourceHeader bool    `json:"no_source_header"`
	WordThreshold  int     `json:"word_threshold"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Marshal(cfg Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

func Save(cfg Config, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// LoadEnv reads a dotenv file into the process environment. A missing file
// is not an error. Variables already set in the environment win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays NOTEBOOKLM_* environment variables on cfg.
func ApplyEnv(cfg Config) (Config, error) {
	if ua := strings.TrimSpace(os.Getenv(EnvUserAgent)); ua != "" {
		cfg.UserAgent = ua
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTimeoutSeconds)); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return cfg, fmt.Errorf("%s must be a positive integer, got %q", EnvTimeoutSeconds, raw)
		}
		cfg.TimeoutSeconds = secs
	}
	return cfg, nil
}
