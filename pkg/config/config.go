package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/device"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.config/angel/config.yaml"

// Config holds application configuration
type Config struct {
	LogLevel               string        `yaml:"log_level" default:"info"`
	ScanTimeout            time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout" default:"30s"`
	DescriptorWriteTimeout time.Duration `yaml:"descriptor_write_timeout" default:"5s"`
	CallbackQueueSize      int           `yaml:"callback_queue_size" default:"256"`
	OutputFormat           string        `yaml:"output_format" default:"text"` // text, json

	source string
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path means
// DefaultPath, which may be absent; an explicitly given file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path %q: %w", path, err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Clean(expanded))
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", expanded, err)
	}
	cfg.source = expanded
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"scan_timeout":             c.ScanTimeout,
		"connect_timeout":          c.ConnectTimeout,
		"descriptor_write_timeout": c.DescriptorWriteTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", name, d)
		}
	}

	if c.CallbackQueueSize <= 0 {
		return fmt.Errorf("callback_queue_size must be > 0, got %d", c.CallbackQueueSize)
	}

	switch c.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("output_format must be \"text\" or \"json\", got %q", c.OutputFormat)
	}
	return nil
}

// Source is the file the config was read from, or "" for built-in defaults.
func (c *Config) Source() string { return c.source }

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// DeviceOptions projects the device settings.
func (c *Config) DeviceOptions() *device.Options {
	return &device.Options{
		DescriptorWriteTimeout: c.DescriptorWriteTimeout,
		CallbackQueueSize:      c.CallbackQueueSize,
	}
}
