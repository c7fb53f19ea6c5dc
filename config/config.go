// Package config loads Vantage settings from an optional YAML file and
// VANTAGE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// DataDir anchors the default locations of every store.
	DataDir  string `yaml:"data_dir"`
	IndexDir string `yaml:"index_dir"`
	JobsDB   string `yaml:"jobs_db"`

	Calibration CalibrationConfig `yaml:"calibration"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Search      SearchConfig      `yaml:"search"`
	Clips       ClipsConfig       `yaml:"clips"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Log         LogConfig         `yaml:"log"`
}

type CalibrationConfig struct {
	File          string `yaml:"file"`
	OffCategory   string `yaml:"off_category"`
	ExactCategory string `yaml:"exact_category"`
}

type EmbeddingConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Token      string `yaml:"token"`
	Dimensions int    `yaml:"dimensions"`
}

type SearchConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	ClusterBuffer       float64       `yaml:"cluster_buffer_seconds"`
	TimePadding         float64       `yaml:"time_padding_seconds"`
	CandidateMultiplier int           `yaml:"candidate_multiplier"`
	StopWords           []string      `yaml:"stop_words"`
	EmbedTimeout        time.Duration `yaml:"embed_timeout"`
	IndexTimeout        time.Duration `yaml:"index_timeout"`
	PoolSize            int           `yaml:"pool_size"`
}

type ClipsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Dir           string        `yaml:"dir"`
	FFmpeg        string        `yaml:"ffmpeg"`
	URLPrefix     string        `yaml:"url_prefix"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	Timeout       time.Duration `yaml:"timeout"`
}

type IngestionConfig struct {
	PoolSize    int           `yaml:"pool_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Calibration: CalibrationConfig{
			File:          "calibration_results.json",
			OffCategory:   "Off",
			ExactCategory: "Perfect",
		},
		Embedding: EmbeddingConfig{
			Host:  "http://localhost:11434/v1",
			Model: "siglip2-base-patch16-384",
			Token: "none",
		},
		Search: SearchConfig{
			ConfidenceThreshold: 0.25,
			ClusterBuffer:       2.0,
			TimePadding:         0.5,
			CandidateMultiplier: 10,
			StopWords: []string{
				"a", "an", "the", "in", "on", "at", "with", "by", "for", "of", "and", "is", "are",
			},
			EmbedTimeout: 10 * time.Second,
			IndexTimeout: 10 * time.Second,
		},
		Clips: ClipsConfig{
			Enabled:       true,
			FFmpeg:        "ffmpeg",
			URLPrefix:     "/clips/",
			RatePerSecond: 2,
			Burst:         4,
			Timeout:       2 * time.Minute,
		},
		Ingestion: IngestionConfig{
			MaxAttempts: 3,
			RetryDelay:  100 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"VANTAGE_DATA_DIR":         &c.DataDir,
		"VANTAGE_INDEX_DIR":        &c.IndexDir,
		"VANTAGE_JOBS_DB":          &c.JobsDB,
		"VANTAGE_CALIBRATION_FILE": &c.Calibration.File,
		"VANTAGE_EMBEDDING_HOST":   &c.Embedding.Host,
		"VANTAGE_EMBEDDING_MODEL":  &c.Embedding.Model,
		"VANTAGE_EMBEDDING_TOKEN":  &c.Embedding.Token,
		"VANTAGE_CLIPS_DIR":        &c.Clips.Dir,
		"VANTAGE_FFMPEG":           &c.Clips.FFmpeg,
		"VANTAGE_CLIP_URL_PREFIX":  &c.Clips.URLPrefix,
		"VANTAGE_LOG_LEVEL":        &c.Log.Level,
		"VANTAGE_LOG_FILE":         &c.Log.File,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("VANTAGE_CLIPS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VANTAGE_CLIPS_ENABLED: %w", err)
		}
		c.Clips.Enabled = enabled
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.IndexDir == "" {
		c.IndexDir = filepath.Join(c.DataDir, "index")
	}
	if c.JobsDB == "" {
		c.JobsDB = filepath.Join(c.DataDir, "jobs.db")
	}
	if c.Clips.Dir == "" {
		c.Clips.Dir = filepath.Join(c.DataDir, "clips")
	}
}

// Validate checks ranges that the components would otherwise reject later.
func (c *Config) Validate() error {
	var errs []error
	if c.Calibration.File == "" {
		errs = append(errs, errors.New("calibration.file is required"))
	}
	if s := c.Search; s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("search.confidence_threshold must be within [0, 1]"))
	}
	if c.Search.ClusterBuffer < 0 {
		errs = append(errs, errors.New("search.cluster_buffer_seconds must not be negative"))
	}
	if c.Search.TimePadding < 0 {
		errs = append(errs, errors.New("search.time_padding_seconds must not be negative"))
	}
	if c.Search.CandidateMultiplier < 1 {
		errs = append(errs, errors.New("search.candidate_multiplier must be at least 1"))
	}
	if c.Search.EmbedTimeout <= 0 || c.Search.IndexTimeout <= 0 {
		errs = append(errs, errors.New("search timeouts must be positive"))
	}
	if c.Clips.Enabled && c.Clips.Timeout <= 0 {
		errs = append(errs, errors.New("clips.timeout must be positive"))
	}
	if c.Ingestion.MaxAttempts < 1 {
		errs = append(errs, errors.New("ingestion.max_attempts must be at least 1"))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to its slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
