// Package config loads the botwatch TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by the botwatch commands. Command-line
// flags override these values.
type Config struct {
	LogPath      string
	PollInterval time.Duration
	SettleDelay  time.Duration
	FromEnd      bool
	Notify       bool
	DBPath       string
	MetricsAddr  string
	LogLevel     string
	LogFormat    string
}

const (
	defaultLogPath      = "fastbot.log"
	defaultPollInterval = time.Second
	defaultSettleDelay  = 10 * time.Millisecond
	defaultDBPath       = "~/.botwatch/botwatch.db"
	defaultLogLevel     = "info"
	defaultLogFormat    = "auto"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogPath:      defaultLogPath,
		PollInterval: defaultPollInterval,
		SettleDelay:  defaultSettleDelay,
		DBPath:       mustExpand(defaultDBPath),
		LogLevel:     defaultLogLevel,
		LogFormat:    defaultLogFormat,
	}
}

// Dir returns the botwatch config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/botwatch if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "botwatch"), nil
}

// Load parses the config at path, or at {Dir}/config.toml when path is
// empty. A missing file yields Default().
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		LogPath       string   `toml:"log_path"`
		PollInterval  *float64 `toml:"poll_interval"`
		SettleDelayMS *int     `toml:"settle_delay_ms"`
		FromEnd       bool     `toml:"from_end"`
		Notify        bool     `toml:"notify"`
		DBPath        string   `toml:"db_path"`
		MetricsAddr   string   `toml:"metrics_addr"`
		LogLevel      string   `toml:"log_level"`
		LogFormat     string   `toml:"log_format"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if raw.PollInterval != nil {
		cfg.PollInterval = time.Duration(*raw.PollInterval * float64(time.Second))
	}
	if raw.SettleDelayMS != nil {
		cfg.SettleDelay = time.Duration(*raw.SettleDelayMS) * time.Millisecond
	}
	cfg.FromEnd = raw.FromEnd
	cfg.Notify = raw.Notify
	if v := strings.TrimSpace(raw.DBPath); v != "" {
		cfg.DBPath = mustExpand(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", resolved, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative, got %s", c.SettleDelay)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log_format must be auto, console or json, got %q", c.LogFormat)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		dir, err := Dir()
		if err != nil {
			return "", fmt.Errorf("resolve config dir: %w", err)
		}
		return filepath.Join(dir, "config.toml"), nil
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading "~" and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
