// internal/config/config.go
//
// This package loads nestguide.yaml, the process-wide configuration for the
// triage CLI and HTTP API. Values are read once at start-up and never change
// while the process runs.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is looked up in the working directory when no path is given.
	DefaultFileName = "nestguide.yaml"

	defaultLogLevel     = "info"
	defaultSink         = "log"
	defaultQueueSize    = 256
	defaultHost         = "127.0.0.1"
	defaultPort         = 8080
	defaultSessionTTL   = 30 * time.Minute
	defaultMaxBodyBytes = 64 << 10
)

const defaultConfigYAML = `# nestguide configuration
version: 1

# Path to a triage catalog. Leave empty to use the catalog built into the binary.
catalog: ""

# Region id from the catalog used for hotline numbers and local guidance.
region: ""

log:
  level: info
  # Optional log file; logs go to stderr when empty.
  file: ""

telemetry:
  # none, log, file, sql or http
  sink: log
  path: ""
  dsn: ""
  url: ""
  queue_size: 256

server:
  host: 127.0.0.1
  port: 8080
  session_ttl: 30m
  max_body_bytes: 65536
`

// LogConfig selects the log level and destination.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// TelemetryConfig selects the telemetry sink.
type TelemetryConfig struct {
	Sink      string `yaml:"sink"`
	Path      string `yaml:"path,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
	URL       string `yaml:"url,omitempty"`
	QueueSize int    `yaml:"queue_size"`
}

// ServerConfig configures the HTTP session API.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Config models nestguide.yaml.
type Config struct {
	// Path is the file the configuration was read from; empty for defaults.
	Path string `yaml:"-"`

	Version   int             `yaml:"version"`
	Catalog   string          `yaml:"catalog,omitempty"`
	Region    string          `yaml:"region,omitempty"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ResolvePath picks the config file: the explicit flag value, then
// $NESTGUIDE_CONFIG, then ./nestguide.yaml.
func ResolvePath(flagValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv("NESTGUIDE_CONFIG")); path != "" {
		return path
	}
	return DefaultFileName
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none are
// given) without overriding variables that already hold a value. Variables
// exported as empty are filled from the file. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
		for key, value := range values {
			if os.Getenv(key) != "" {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("config: set %s: %w", key, err)
			}
		}
	}
	return nil
}

// Load reads path, applies defaults and environment overrides, and validates
// the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyDefaults()
	// File paths are relative to the config file, env paths to the working dir.
	cfg.normalize(baseDir(cfg.Path))
	cfg.applyEnvOverrides()
	cfg.normalize("")
	if err := cfg.validate(); err != nil {
		if cfg.Path != "" {
			return nil, fmt.Errorf("config: %s: %w", cfg.Path, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// EnsureFile writes the commented default configuration to path unless a file
// already exists there. It reports whether a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Telemetry.Sink == "" {
		c.Telemetry.Sink = defaultSink
	}
	if c.Telemetry.QueueSize <= 0 {
		c.Telemetry.QueueSize = defaultQueueSize
	}
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = defaultSessionTTL
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
}

func (c *Config) applyEnvOverrides() {
	setString := func(key string, target *string) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*target = value
		}
	}
	setString("NESTGUIDE_CATALOG", &c.Catalog)
	setString("NESTGUIDE_REGION", &c.Region)
	setString("NESTGUIDE_LOG_LEVEL", &c.Log.Level)
	setString("NESTGUIDE_LOG_FILE", &c.Log.File)
	setString("NESTGUIDE_TELEMETRY_SINK", &c.Telemetry.Sink)
	setString("NESTGUIDE_TELEMETRY_PATH", &c.Telemetry.Path)
	setString("DATABASE_URL", &c.Telemetry.DSN)
	setString("NESTGUIDE_TELEMETRY_DSN", &c.Telemetry.DSN)
	setString("NESTGUIDE_TELEMETRY_URL", &c.Telemetry.URL)
	setString("NESTGUIDE_HOST", &c.Server.Host)
	if port := strings.TrimSpace(os.Getenv("NESTGUIDE_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			c.Server.Port = parsed
		}
	}
	if ttl := strings.TrimSpace(os.Getenv("NESTGUIDE_SESSION_TTL")); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			c.Server.SessionTTL = parsed
		}
	}
}

func (c *Config) normalize(base string) {
	c.Catalog = resolvePath(base, c.Catalog)
	c.Region = strings.TrimSpace(c.Region)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.File = resolvePath(base, c.Log.File)
	c.Telemetry.Sink = strings.ToLower(strings.TrimSpace(c.Telemetry.Sink))
	c.Telemetry.Path = resolvePath(base, c.Telemetry.Path)
	c.Telemetry.DSN = strings.TrimSpace(c.Telemetry.DSN)
	c.Telemetry.URL = strings.TrimSpace(c.Telemetry.URL)
	c.Server.Host = strings.TrimSpace(c.Server.Host)
}

func (c *Config) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Telemetry.Sink {
	case "none", "log":
	case "file":
		if c.Telemetry.Path == "" {
			return fmt.Errorf("telemetry.path is required for the file sink")
		}
	case "sql":
		if c.Telemetry.DSN == "" {
			return fmt.Errorf("telemetry.dsn is required for the sql sink")
		}
	case "http":
		if c.Telemetry.URL == "" {
			return fmt.Errorf("telemetry.url is required for the http sink")
		}
	default:
		return fmt.Errorf("telemetry.sink must be one of none, log, file, sql, http")
	}
	if !isValidPort(c.Server.Port) {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

func baseDir(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Dir(path)
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) || base == "" {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
