package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deptrack/deptrack/pkg/types"
)

// Config is the root configuration for a tracking session.
type Config struct {
	Targets TargetsConfig `yaml:"targets"`
	Taint   TaintConfig   `yaml:"taint"`
	Trace   TraceConfig   `yaml:"trace"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TargetsConfig declares the endpoints to track and an optional
// process-name filter.
type TargetsConfig struct {
	Sources []TargetSpec `yaml:"sources"`
	Sinks   []TargetSpec `yaml:"sinks"`

	// Processes restricts classification to processes whose name
	// matches one of these glob patterns. Empty means all processes.
	Processes []string `yaml:"processes"`
}

// TargetSpec is one endpoint in the config file. Exactly one of File or
// Network must be set.
type TargetSpec struct {
	File    string         `yaml:"file,omitempty"`
	Network *NetworkTarget `yaml:"network,omitempty"`
}

type NetworkTarget struct {
	Address string `yaml:"address"`
	Port    uint16 `yaml:"port"`
}

// Target converts the config entry to its endpoint identity.
func (s TargetSpec) Target() types.Target {
	if s.Network != nil {
		return types.NetworkTarget(s.Network.Address, s.Network.Port)
	}
	return types.FileTarget(s.File)
}

type TaintConfig struct {
	Enabled bool `yaml:"enabled"`

	// EnableAtEvent delays taint enablement until the trace event with
	// this sequence number. Zero enables taint from the first event.
	EnableAtEvent int64 `yaml:"enable_at_event"`
}

type TraceConfig struct {
	// Input is the path of the recorded trace (JSONL), "-" for stdin.
	Input string `yaml:"input"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type StorageConfig struct {
	SQLitePath string      `yaml:"sqlite_path"`
	JSONL      JSONLConfig `yaml:"jsonl"`
}

type JSONLConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(b)
}

// LoadFromBytes parses, defaults and validates config data.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8471"
	}
	if cfg.Storage.JSONL.MaxSizeMB <= 0 {
		cfg.Storage.JSONL.MaxSizeMB = 100
	}
	if cfg.Storage.JSONL.MaxBackups <= 0 {
		cfg.Storage.JSONL.MaxBackups = 3
	}
}

func validateConfig(cfg *Config) error {
	for i, s := range cfg.Targets.Sources {
		if err := validateSpec(s); err != nil {
			return fmt.Errorf("targets.sources[%d]: %w", i, err)
		}
	}
	for i, s := range cfg.Targets.Sinks {
		if err := validateSpec(s); err != nil {
			return fmt.Errorf("targets.sinks[%d]: %w", i, err)
		}
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", cfg.Logging.Format)
	}
	if cfg.Taint.EnableAtEvent < 0 {
		return fmt.Errorf("taint.enable_at_event: must be non-negative")
	}
	return nil
}

func validateSpec(s TargetSpec) error {
	if s.File != "" && s.Network != nil {
		return fmt.Errorf("target declares both file and network")
	}
	if !s.Target().Valid() {
		return fmt.Errorf("target has no identity (empty path or address)")
	}
	return nil
}
