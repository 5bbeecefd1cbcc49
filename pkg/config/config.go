package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath      = "CHATLENS_CONFIG"
	envDataRoot        = "CHATLENS_DATA_ROOT"
	envComputePasscode = "COMPUTE_PASSCODE"
	envHTTPPort        = "CHATLENS_HTTP_PORT"
	envAllowOrigins    = "CHATLENS_ALLOW_ORIGINS"
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Analysis  AnalysisConfig  `json:"analysis" yaml:"analysis"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`

	// Path is the file the config was read from; empty when defaults apply.
	Path string `json:"-" yaml:"-"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// StorageConfig locates the extracted log tree and upload chunk area.
type StorageConfig struct {
	DataRoot  string `json:"data_root" yaml:"data_root"`
	ChunkRoot string `json:"chunk_root" yaml:"chunk_root"`
}

// AnalysisConfig bounds analysis work.
type AnalysisConfig struct {
	MaxWindowDays         int    `json:"max_window_days" yaml:"max_window_days"`
	TopN                  int    `json:"top_n" yaml:"top_n"`
	WordPasscodeThreshold int    `json:"word_passcode_threshold" yaml:"word_passcode_threshold"`
	ComputePasscode       string `json:"compute_passcode" yaml:"compute_passcode"`
}

// ServerConfig configures HTTP API bind settings.
type ServerConfig struct {
	Host         string   `json:"host" yaml:"host"`
	Port         int      `json:"port" yaml:"port"`
	AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
}

// RetentionConfig controls the periodic removal of expired uploads.
type RetentionConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	Schedule           string `json:"schedule" yaml:"schedule"`
	MaxAgeHours        int    `json:"max_age_hours" yaml:"max_age_hours"`
	ChunkMaxAgeMinutes int    `json:"chunk_max_age_minutes" yaml:"chunk_max_age_minutes"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MaxWindowDays:         30,
			TopN:                  10,
			WordPasscodeThreshold: 15000,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Retention: RetentionConfig{
			Enabled:            true,
			Schedule:           "@every 1h",
			MaxAgeHours:        72,
			ChunkMaxAgeMinutes: 60,
		},
	}
}

// LoadConfig loads .env, resolves the config file, unmarshals it over the
// defaults and applies environment overrides.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(configPath, content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.Path = configPath
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the analyzers cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.MaxWindowDays < 1 {
		return fmt.Errorf("analysis.max_window_days must be at least 1, got %d", c.Analysis.MaxWindowDays)
	}
	if c.Analysis.TopN < 1 {
		return fmt.Errorf("analysis.top_n must be at least 1, got %d", c.Analysis.TopN)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Retention.Enabled && strings.TrimSpace(c.Retention.Schedule) == "" {
		return errors.New("retention.schedule is required when retention is enabled")
	}

	return nil
}

// Address returns the host:port the API listens on.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func decode(path string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	default:
		return json.Unmarshal(content, cfg)
	}
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if root := strings.TrimSpace(os.Getenv(envDataRoot)); root != "" {
		cfg.Storage.DataRoot = root
	}

	if passcode := os.Getenv(envComputePasscode); passcode != "" {
		cfg.Analysis.ComputePasscode = passcode
	}

	if rawPort := strings.TrimSpace(os.Getenv(envHTTPPort)); rawPort != "" {
		port, err := strconv.Atoi(rawPort)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", envHTTPPort, err)
		}
		cfg.Server.Port = port
	}

	if rawOrigins := strings.TrimSpace(os.Getenv(envAllowOrigins)); rawOrigins != "" {
		cfg.Server.AllowOrigins = parseCSV(rawOrigins)
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is CHATLENS_CONFIG first, then cwd-local fallback paths. An
// empty path with a nil error means no file exists and defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config.yml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
