// Package config carries the run configuration for the batch analyzer.
//
// Precedence, lowest to highest: built-in defaults, SB3_* environment
// variables, the optional YAML config file, command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scratchlab/sb3-metrics-pipeline/internal/scratchapi"
)

// Config is the full run configuration.
type Config struct {
	// InputDir holds the .sb3 archives to analyze.
	InputDir string `yaml:"input_dir"`
	// OutputPath is the CSV result table.
	OutputPath string `yaml:"output"`
	// ProgressPath is the durable record of completed identifiers.
	ProgressPath string `yaml:"progress"`

	// EngineCmd is the external analysis engine command line.
	EngineCmd string `yaml:"engine_cmd"`
	// EngineTimeout bounds one engine invocation.
	EngineTimeout time.Duration `yaml:"engine_timeout"`

	// Workers bounds concurrent per-item pipelines. 0 means automatic.
	Workers int `yaml:"workers"`
	// ChunkSize buffers submissions ahead of the workers.
	ChunkSize int `yaml:"chunk_size"`
	// MaxFileSize rejects larger archives, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// SaveInterval is how many completions may accumulate between progress flushes.
	SaveInterval int `yaml:"save_interval"`

	// Metadata toggles enrichment from the metadata service.
	Metadata bool `yaml:"metadata"`
	// MetadataURL overrides the service base URL (tests, mirrors).
	MetadataURL string `yaml:"metadata_url"`
	// MetadataTimeout bounds one metadata request attempt.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
	// MetadataRetries is the number of extra attempts per identifier.
	MetadataRetries int `yaml:"metadata_retries"`
	// MetadataRPS caps the aggregate request rate across workers. 0 disables.
	MetadataRPS float64 `yaml:"metadata_rps"`

	// LogFile, when set, tees log output into a file.
	LogFile string `yaml:"log_file"`
	// Reprocess ignores recorded progress and recreates the output table.
	Reprocess bool `yaml:"reprocess"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ProgressPath:    "analysis_progress.json",
		EngineCmd:       "drscratch-engine",
		EngineTimeout:   5 * time.Minute,
		MaxFileSize:     100 << 20,
		SaveInterval:    10,
		Metadata:        true,
		MetadataURL:     scratchapi.DefaultBaseURL,
		MetadataTimeout: 15 * time.Second,
		MetadataRetries: 2,
	}
}

// ApplyEnv overlays SB3_* environment variables.
func (c *Config) ApplyEnv() error {
	var err error
	if c.Workers, err = envInt("SB3_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.ChunkSize, err = envInt("SB3_CHUNK_SIZE", c.ChunkSize); err != nil {
		return err
	}
	if c.SaveInterval, err = envInt("SB3_SAVE_INTERVAL", c.SaveInterval); err != nil {
		return err
	}
	if c.MetadataRetries, err = envInt("SB3_METADATA_RETRIES", c.MetadataRetries); err != nil {
		return err
	}
	if c.MetadataTimeout, err = envDuration("SB3_METADATA_TIMEOUT", c.MetadataTimeout); err != nil {
		return err
	}
	if c.EngineTimeout, err = envDuration("SB3_ENGINE_TIMEOUT", c.EngineTimeout); err != nil {
		return err
	}
	if c.MetadataRPS, err = envFloat("SB3_METADATA_RPS", c.MetadataRPS); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("SB3_METADATA_URL")); v != "" {
		c.MetadataURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SB3_ENGINE_CMD")); v != "" {
		c.EngineCmd = v
	}
	return nil
}

// ApplyFile overlays a YAML config file. Unknown keys are rejected so typos
// surface as configuration errors instead of silently ignored settings.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings that have no sensible fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return fmt.Errorf("input directory is required")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("output path is required")
	}
	if strings.TrimSpace(c.ProgressPath) == "" {
		return fmt.Errorf("progress path is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive")
	}
	if c.MetadataRetries < 0 {
		return fmt.Errorf("metadata retries must be >= 0")
	}
	if len(c.EngineArgv()) == 0 {
		return fmt.Errorf("engine command is required")
	}
	return nil
}

// EngineArgv splits the engine command line into argv form.
func (c *Config) EngineArgv() []string {
	return strings.Fields(c.EngineCmd)
}

func envInt(name string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return out, nil
}

func envFloat(name string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return out, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 15s: %w", name, err)
	}
	return out, nil
}
