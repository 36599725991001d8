// Package model defines the data structures for relay's records, configuration,
// and persisted queue index.
package model

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// RelayDirName is the directory created under a project root by setup.
	RelayDirName = ".relay"
	// ConfigFileName is the config file inside the relay directory.
	ConfigFileName = "config.yaml"
	// IndexFileName is the persisted queue index inside the relay directory.
	IndexFileName = "index.json"
)

type Config struct {
	Project ProjectConfig `yaml:"project"`
	Relay   RelayConfig   `yaml:"relay"`
	Dirs    DirsConfig    `yaml:"dirs"`
	Watcher WatcherConfig `yaml:"watcher"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type RelayConfig struct {
	Version     string `yaml:"version"`
	Created     string `yaml:"created"`
	ProjectRoot string `yaml:"project_root"`
}

// DirsConfig names the directory layout relative to the relay directory.
type DirsConfig struct {
	Pending    string `yaml:"pending"`
	Processing string `yaml:"processing"`
	Output     string `yaml:"output"`
	Archive    string `yaml:"archive"`
	Logs       string `yaml:"logs"`
	Schema     string `yaml:"schema"`
}

type WatcherConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxCycles       int `yaml:"max_cycles"`
	DebounceMs      int `yaml:"debounce_ms"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

// Paths is the resolved directory layout for one relay directory.
// Every component takes a Paths value instead of reaching for globals.
type Paths struct {
	Base       string
	Pending    string
	Processing string
	Output     string
	Archive    string
	Logs       string
	Schema     string
	Quarantine string
	Locks      string
	Index      string
	EventLog   string
}

// Paths resolves the configured layout against the relay directory.
func (c Config) Paths(relayDir string) Paths {
	return Paths{
		Base:       relayDir,
		Pending:    filepath.Join(relayDir, c.Dirs.Pending),
		Processing: filepath.Join(relayDir, c.Dirs.Processing),
		Output:     filepath.Join(relayDir, c.Dirs.Output),
		Archive:    filepath.Join(relayDir, c.Dirs.Archive),
		Logs:       filepath.Join(relayDir, c.Dirs.Logs),
		Schema:     filepath.Join(relayDir, c.Dirs.Schema),
		Quarantine: filepath.Join(relayDir, "quarantine"),
		Locks:      filepath.Join(relayDir, "locks"),
		Index:      filepath.Join(relayDir, IndexFileName),
		EventLog:   filepath.Join(relayDir, c.Dirs.Logs, "events.jsonl"),
	}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Dirs: DirsConfig{
			Pending:    "pending",
			Processing: "processing",
			Output:     "output",
			Archive:    "archive",
			Logs:       "logs",
			Schema:     "schema",
		},
		Watcher: WatcherConfig{
			PollIntervalSec: 5,
			MaxCycles:       0,
			DebounceMs:      500,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			DelayMs:     200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Daemon: DaemonConfig{
			ShutdownTimeoutSec: 30,
		},
	}
}

// LoadConfig reads config.yaml from the relay directory, filling any
// unset field with its default. A missing file yields the defaults.
func LoadConfig(relayDir string) (Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(relayDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Dirs.Pending == "" {
		cfg.Dirs.Pending = def.Dirs.Pending
	}
	if cfg.Dirs.Processing == "" {
		cfg.Dirs.Processing = def.Dirs.Processing
	}
	if cfg.Dirs.Output == "" {
		cfg.Dirs.Output = def.Dirs.Output
	}
	if cfg.Dirs.Archive == "" {
		cfg.Dirs.Archive = def.Dirs.Archive
	}
	if cfg.Dirs.Logs == "" {
		cfg.Dirs.Logs = def.Dirs.Logs
	}
	if cfg.Dirs.Schema == "" {
		cfg.Dirs.Schema = def.Dirs.Schema
	}
	if cfg.Watcher.PollIntervalSec <= 0 {
		cfg.Watcher.PollIntervalSec = def.Watcher.PollIntervalSec
	}
	if cfg.Watcher.DebounceMs <= 0 {
		cfg.Watcher.DebounceMs = def.Watcher.DebounceMs
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.DelayMs <= 0 {
		cfg.Retry.DelayMs = def.Retry.DelayMs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Daemon.ShutdownTimeoutSec <= 0 {
		cfg.Daemon.ShutdownTimeoutSec = def.Daemon.ShutdownTimeoutSec
	}
}
