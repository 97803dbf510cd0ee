package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes how to open a document database.
//
// Example:
//
//	dsn: ./docs.sqlite
//	pragmas:
//	  - journal_mode=WAL
//	  - busy_timeout=5000
//	log_level: debug
//	max_open_conns: 1
//	register_each: true
type Config struct {
	DSN          string   `yaml:"dsn"`
	Pragmas      []string `yaml:"pragmas"`
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
	MaxOpenConns int      `yaml:"max_open_conns"`
	RegisterEach bool     `yaml:"register_each"`

	// Output receives log records; stderr when nil.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns an in-memory, single-connection configuration.
func DefaultConfig() *Config {
	return &Config{
		DSN:          ":memory:",
		LogLevel:     "info",
		LogFormat:    "text",
		MaxOpenConns: 1,
		RegisterEach: true,
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig, so omitted keys keep their
// defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("engine: parse config: %w", err)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("engine: config: dsn is required")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("engine: config: unsupported log_format %q", cfg.LogFormat)
	}
	if cfg.MaxOpenConns < 0 {
		return nil, fmt.Errorf("engine: config: max_open_conns must be >= 0, got %d", cfg.MaxOpenConns)
	}
	return cfg, nil
}

// Logger builds a slog.Logger at the configured level and format.
func (c *Config) Logger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler).With("component", "engine")
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("engine: config: unsupported log_level %q", s)
	}
	return level, nil
}
