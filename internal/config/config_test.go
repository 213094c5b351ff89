package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDir_RespectsXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != filepath.Join(xdg, "botwatch") {
		t.Errorf("Dir() = %q, want %q", dir, filepath.Join(xdg, "botwatch"))
	}
}

func TestDir_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != filepath.Join(home, ".config", "botwatch") {
		t.Errorf("Dir() = %q, want %q", dir, filepath.Join(home, ".config", "botwatch"))
	}
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogPath != defaultLogPath {
		t.Errorf("LogPath = %q, want %q", cfg.LogPath, defaultLogPath)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %s, want 1s", cfg.PollInterval)
	}
	if cfg.SettleDelay != 10*time.Millisecond {
		t.Errorf("SettleDelay = %s, want 10ms", cfg.SettleDelay)
	}
	if cfg.DBPath != filepath.Join(home, ".botwatch", "botwatch.db") {
		t.Errorf("DBPath = %q, want it under HOME", cfg.DBPath)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "auto" {
		t.Errorf("LogLevel/LogFormat = %q/%q, want info/auto", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_EmptyPathUsesConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if err := os.MkdirAll(filepath.Join(xdg, "botwatch"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(xdg, "botwatch", "config.toml"), []byte(`log_level = "debug"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_ParsesConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
log_path = "  ~/run/fastbot.log  "
poll_interval = 0.5
settle_delay_ms = 0
from_end = true
notify = true
db_path = "~/data/history.db"
metrics_addr = " 127.0.0.1:9464 "
log_level = "WARN"
log_format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogPath != filepath.Join(home, "run", "fastbot.log") {
		t.Errorf("LogPath = %q, want it under HOME", cfg.LogPath)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %s, want 500ms", cfg.PollInterval)
	}
	if cfg.SettleDelay != 0 {
		t.Errorf("SettleDelay = %s, want 0", cfg.SettleDelay)
	}
	if !cfg.FromEnd || !cfg.Notify {
		t.Errorf("FromEnd/Notify = %v/%v, want true/true", cfg.FromEnd, cfg.Notify)
	}
	if !strings.HasPrefix(cfg.DBPath, home) {
		t.Errorf("DBPath = %q, want it under HOME %q", cfg.DBPath, home)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, "127.0.0.1:9464")
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "json" {
		t.Errorf("LogLevel/LogFormat = %q/%q, want warn/json", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `poll_interval = [`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should fail on malformed TOML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero poll":      `poll_interval = 0`,
		"negative delay": `settle_delay_ms = -5`,
		"bad level":      `log_level = "trace"`,
		"bad format":     `log_format = "xml"`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Errorf("Load(%s) should fail", content)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/x.db")
	if err != nil {
		t.Fatalf("ExpandPath error: %v", err)
	}
	if got != filepath.Join(home, "x.db") {
		t.Errorf("ExpandPath = %q, want %q", got, filepath.Join(home, "x.db"))
	}

	if _, err := ExpandPath("  "); err == nil {
		t.Error("ExpandPath should reject an empty path")
	}
}
