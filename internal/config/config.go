package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported locales for user-facing messages.
const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

// DefaultSystemMessage is attached to every chat-process request.
const DefaultSystemMessage = "You are a helpful data analysis assistant."

// Config holds all configuration values.
type Config struct {
	// Middleware relay
	MiddlewareURL  string
	RequestTimeout time.Duration
	SystemMessage  string

	// Recycle feed
	RecycleURL     string
	RecycleTimeout time.Duration

	// Web relay server
	ServerPort string

	// User-facing text
	Locale string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for the optional YAML file.
// Durations are strings so "60s" and "1m" both work.
type fileConfig struct {
	MiddlewareURL  string `yaml:"middleware_url"`
	RequestTimeout string `yaml:"request_timeout"`
	SystemMessage  string `yaml:"system_message"`
	RecycleURL     string `yaml:"recycle_url"`
	RecycleTimeout string `yaml:"recycle_timeout"`
	ServerPort     string `yaml:"server_port"`
	Locale         string `yaml:"locale"`
	LogFile        string `yaml:"log_file"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the built-in configuration.
// The middleware URL is the target the web client's dev proxy forwards /api to.
func Default() Config {
	return Config{
		MiddlewareURL:  "http://localhost:3002/api",
		RequestTimeout: 60 * time.Second,
		SystemMessage:  DefaultSystemMessage,
		RecycleURL:     "http://localhost:8084",
		RecycleTimeout: 5 * time.Second,
		ServerPort:     "8485",
		Locale:         LocaleEN,
		LogFile:        filepath.Join(os.TempDir(), "datachat.log"),
		LogLevel:       slog.LevelInfo,
	}
}

// Load builds the configuration from defaults, the YAML file (if any) and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	cfg := Default()

	path := ConfigPath()
	if err := cfg.mergeFile(path); err != nil {
		return cfg, fmt.Errorf("load config file %s: %w", path, err)
	}

	if err := cfg.mergeEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ConfigPath returns DATACHAT_CONFIG or ~/.config/datachat/config.yaml.
func ConfigPath() string {
	if p := os.Getenv("DATACHAT_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".datachat", "config.yaml")
	}
	return filepath.Join(dir, "datachat", "config.yaml")
}

// mergeFile overlays values from a YAML file. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString(&c.MiddlewareURL, fc.MiddlewareURL)
	setString(&c.SystemMessage, fc.SystemMessage)
	setString(&c.RecycleURL, fc.RecycleURL)
	setString(&c.ServerPort, fc.ServerPort)
	setString(&c.Locale, fc.Locale)
	setString(&c.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if err := setDuration(&c.RequestTimeout, "request_timeout", fc.RequestTimeout); err != nil {
		return err
	}
	return setDuration(&c.RecycleTimeout, "recycle_timeout", fc.RecycleTimeout)
}

func (c *Config) mergeEnv() error {
	setString(&c.MiddlewareURL, os.Getenv("DATACHAT_MIDDLEWARE_URL"))
	setString(&c.SystemMessage, os.Getenv("DATACHAT_SYSTEM_MESSAGE"))
	setString(&c.RecycleURL, os.Getenv("DATACHAT_RECYCLE_URL"))
	setString(&c.ServerPort, os.Getenv("DATACHAT_SERVER_PORT"))
	setString(&c.Locale, os.Getenv("DATACHAT_LOCALE"))
	setString(&c.LogFile, os.Getenv("DATACHAT_LOG_FILE"))
	if lvl := os.Getenv("DATACHAT_LOG_LEVEL"); lvl != "" {
		c.LogLevel = parseLogLevel(lvl)
	}
	if err := setDuration(&c.RequestTimeout, "DATACHAT_REQUEST_TIMEOUT", os.Getenv("DATACHAT_REQUEST_TIMEOUT")); err != nil {
		return err
	}
	return setDuration(&c.RecycleTimeout, "DATACHAT_RECYCLE_TIMEOUT", os.Getenv("DATACHAT_RECYCLE_TIMEOUT"))
}

// Validate checks URLs, timeouts and locale.
func (c Config) Validate() error {
	if err := validateURL("middleware url", c.MiddlewareURL); err != nil {
		return err
	}
	if err := validateURL("recycle url", c.RecycleURL); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RecycleTimeout <= 0 {
		return fmt.Errorf("recycle timeout must be positive, got %s", c.RecycleTimeout)
	}
	switch c.Locale {
	case LocaleEN, LocaleZH:
	default:
		return fmt.Errorf("unsupported locale %q (want %s or %s)", c.Locale, LocaleEN, LocaleZH)
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", name, raw)
	}
	return nil
}

func setString(dst *string, val string) {
	if val = strings.TrimSpace(val); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, key, val string) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
