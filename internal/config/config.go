// Package config loads vhq settings from ~/.vhq/config.yaml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultListen is the address the host daemon listens on by default.
const DefaultListen = "127.0.0.1:7470"

// Config holds client and daemon settings.
type Config struct {
	// API is the base URL of the host daemon.
	API string `yaml:"api"`
	// PollInterval is the period between agent status refreshes.
	PollInterval time.Duration `yaml:"poll_interval"`
	// RequestTimeout bounds each refresh tick.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// LogFile receives log output while the TUI owns the terminal.
	LogFile string `yaml:"log_file"`

	Todo   TodoConfig   `yaml:"todo"`
	Daemon DaemonConfig `yaml:"daemon"`
}

// TodoConfig locates the local todo list.
type TodoConfig struct {
	DBPath     string `yaml:"db_path"`
	StorageKey string `yaml:"storage_key"`
}

// DaemonConfig holds host daemon settings.
type DaemonConfig struct {
	Listen             string        `yaml:"listen"`
	DBPath             string        `yaml:"db_path"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
	TaskTimeout        time.Duration `yaml:"task_timeout"`
	// WorkerDuration is how long a simulated agent works on one task.
	WorkerDuration time.Duration `yaml:"worker_duration"`
	OllamaURL      string        `yaml:"ollama_url"`
}

// Dir returns ~/.vhq, or .vhq when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vhq"
	}
	return filepath.Join(home, ".vhq")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		API:            "http://" + DefaultListen,
		PollInterval:   5 * time.Second,
		RequestTimeout: 10 * time.Second,
		LogFile:        filepath.Join(dir, "tui.log"),
		Todo: TodoConfig{
			DBPath:     filepath.Join(dir, "local.db"),
			StorageKey: "vhq_todos",
		},
		Daemon: DaemonConfig{
			Listen:             DefaultListen,
			DBPath:             filepath.Join(dir, "host.db"),
			MaxConcurrentTasks: 5,
			TaskTimeout:        300 * time.Second,
			WorkerDuration:     5 * time.Second,
			OllamaURL:          "http://localhost:11434",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads ~/.vhq/config.yaml.
func LoadFromHome() (*Config, error) {
	return Load(DefaultPath())
}

// Save writes cfg to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api must be an absolute URL, got %q", c.API)
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll_interval must be at least 100ms")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if strings.TrimSpace(c.Todo.StorageKey) == "" {
		return fmt.Errorf("todo.storage_key is required")
	}
	if c.Todo.DBPath == "" {
		return fmt.Errorf("todo.db_path is required")
	}
	if c.Daemon.Listen == "" {
		return fmt.Errorf("daemon.listen is required")
	}
	if c.Daemon.DBPath == "" {
		return fmt.Errorf("daemon.db_path is required")
	}
	if c.Daemon.MaxConcurrentTasks < 1 {
		return fmt.Errorf("daemon.max_concurrent_tasks must be at least 1")
	}
	if c.Daemon.TaskTimeout <= 0 {
		return fmt.Errorf("daemon.task_timeout must be positive")
	}
	if c.Daemon.WorkerDuration < 0 {
		return fmt.Errorf("daemon.worker_duration cannot be negative")
	}
	return nil
}

func (c *Config) expandPaths() {
	c.LogFile = expandHome(c.LogFile)
	c.Todo.DBPath = expandHome(c.Todo.DBPath)
	c.Daemon.DBPath = expandHome(c.Daemon.DBPath)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
