package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/config"
	"github.com/blackwell-systems/botwatch/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

var (
	configPath string
	dbPath     string
	logPath    string
	logLevel   string
	logFormat  string

	// cfg, logger and errOut are populated by the root PersistentPreRunE.
	// errOut is the command's stderr, shared by the logger, child processes
	// and fatal reports.
	cfg    config.Config
	logger zerolog.Logger
	errOut io.Writer = os.Stderr

	// exitFunc ends the process after a fatal event has been reported.
	exitFunc = os.Exit

	// RootCmd is the root command for botwatch
	RootCmd = &cobra.Command{
		Use:   "botwatch",
		Short: "Watch a Fastbot test log and stop on internal errors",
		Long: `botwatch tails the log written by the Fastbot GUI test engine and reacts
to what the engine reports:

  • Internal error         fatal: the message is printed and botwatch exits 1
  • Monkey is over!        the run statistics are logged
  • Activity of Coverage   the coverage line is logged

Every event is also recorded in a local history database so coverage can be
plotted after the run.

Quick Start:
  1. botwatch run -- adb shell monkey ...   # run the engine under supervision
  2. botwatch history                       # list recorded runs
  3. botwatch history --run latest --coverage

Examples:
  # Tail fastbot.log in the current directory
  botwatch watch

  # Tail in the background
  botwatch watch --daemon --log /data/fastbot.log

  # Check a finished log once
  botwatch scan --log fastbot.log`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/botwatch/config.toml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: ~/.botwatch/botwatch.db)")
	RootCmd.PersistentFlags().StringVar(&logPath, "log", "", "fastbot log to watch (default: fastbot.log)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto, console, json")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// setup loads the config file, applies global flag overrides and builds the
// logger.
func setup(cmd *cobra.Command) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if logPath != "" {
		loaded.LogPath = logPath
	}
	if dbPath != "" {
		loaded.DBPath = dbPath
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	errOut = lockWriter(cmd.ErrOrStderr())
	logger = logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: errOut,
	})
	return nil
}

// getDBPath returns the history database path and creates its directory.
func getDBPath() (string, error) {
	path := cfg.DBPath
	if dbPath != "" {
		path = dbPath
	}
	if path == "" {
		dir, err := getBotwatchDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "botwatch.db"), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path, nil
}

// getBotwatchDir returns ~/.botwatch, creating it if needed.
func getBotwatchDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".botwatch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create botwatch directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getBotwatchDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default daemon output file path
func getDefaultLogFile() (string, error) {
	dir, err := getBotwatchDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
