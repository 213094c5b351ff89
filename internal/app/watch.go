package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/output"
	"github.com/blackwell-systems/botwatch/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchFromEnd     bool
	watchPoll        time.Duration
	watchNotify      bool
	watchMetricsAddr string
	watchNoHistory   bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Tail the fastbot log until an internal error is reported",
		Long: `Tail the fastbot log and react to the events the test engine writes.

The log is polled every second (or --poll). With --notify, file change
notifications wake the poller early. New lines are captured once they contain
one of the trigger phrases and classified when the poll completes:

  • Internal error         printed to stderr, botwatch exits with status 1
  • Monkey is over!        logged as "[INFO] Fastbot exit"
  • Activity of Coverage   logged as "[INFO] Cov info"

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon

On shutdown the remaining log content, including an unterminated last line,
is read and classified once more.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  botwatch watch

  # Watch a specific log, starting at its current end
  botwatch watch --log /sdcard/fastbot.log --from-end

  # Run as background daemon with Prometheus metrics
  botwatch watch --daemon --metrics-addr 127.0.0.1:9464

  # Stop running daemon
  botwatch watch --stop`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.botwatch/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "daemon output file (default: ~/.botwatch/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVar(&watchFromEnd, "from-end", false, "skip content already in the log")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", 0, "poll interval (default: 1s)")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "wake on file change notifications")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchNoHistory, "no-history", false, "do not record events in the history database")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func applyWatchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("from-end") {
		cfg.FromEnd = watchFromEnd
	}
	if flags.Changed("poll") {
		cfg.PollInterval = watchPoll
	}
	if flags.Changed("notify") {
		cfg.Notify = watchNotify
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = watchMetricsAddr
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	applyWatchFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop command
	if watchStop {
		return stopWatchDaemon(cmd)
	}

	if watchDaemon {
		return startWatchDaemon(cmd)
	}

	var hist *history
	if !watchNoHistory {
		h, err := openHistory(cfg.LogPath, nil)
		if err != nil {
			return err
		}
		hist = h
	}

	opts := watcherOptions()
	// Fatal events are reported after cleanup, below.
	opts.OnFatal = func(*watcher.FatalError) {}
	hist.attach(&opts)

	m, err := startMetrics(cfg.MetricsAddr, &opts)
	if err != nil {
		hist.finish(1)
		return err
	}
	defer stopMetrics(m)

	w, err := watcher.New(opts)
	if err != nil {
		hist.finish(1)
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Handle daemon child process
	if watchDaemonChild {
		return runWatchDaemonChild(w, hist)
	}

	// Run in foreground
	return runWatchForeground(cmd, w, hist)
}

func stopWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// The daemon drains the log before removing its PID file.
	const timeout = 10 * time.Second
	spinner := output.NewSpinner("Stopping daemon...").WithTimeout(timeout)
	spinner.SetWriter(out)
	spinner.Start()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(watchPIDFile); os.IsNotExist(err) {
			spinner.StopWithMessage("✓ Daemon stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	spinner.Stop()
	return fmt.Errorf("daemon did not exit within %s (PID file: %s)", timeout, watchPIDFile)
}

func startWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	logAbs, err := filepath.Abs(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log path: %w", err)
	}
	// Fail here rather than silently in the detached child.
	if _, err := os.Stat(logAbs); err != nil {
		return fmt.Errorf("cannot watch %s: %w", logAbs, err)
	}

	args := []string{"--log", logAbs, "--poll", cfg.PollInterval.String()}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if dbPath != "" {
		args = append(args, "--db", dbPath)
	}
	if cfg.FromEnd {
		args = append(args, "--from-end")
	}
	if cfg.Notify {
		args = append(args, "--notify")
	}
	if cfg.MetricsAddr != "" {
		args = append(args, "--metrics-addr", cfg.MetricsAddr)
	}
	if watchNoHistory {
		args = append(args, "--no-history")
	}

	spinner := output.NewSpinner("Starting daemon...")
	spinner.SetWriter(out)
	spinner.Start()
	if err := watcher.StartDaemon(watchPIDFile, watchLogFile, args); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nWatching %s\n", logAbs)
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: botwatch watch --stop\n")

	return nil
}

func runWatchDaemonChild(w *watcher.Watcher, hist *history) error {
	// This runs as the daemon child process; stdout/stderr go to the
	// daemon log file.
	if err := w.RunDaemon(context.Background(), watchPIDFile); err != nil {
		hist.finish(1)
		return err
	}
	hist.finish(0)
	return nil
}

func runWatchForeground(cmd *cobra.Command, w *watcher.Watcher, hist *history) error {
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := w.Start(ctx); err != nil {
		hist.finish(1)
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)...\n", w.Path())

	var fatal *watcher.FatalError
	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down...")
	case fatal = <-w.Fatal():
	}

	stopErr := w.Stop()
	if fatal == nil {
		// The final drain may still find one.
		select {
		case fatal = <-w.Fatal():
		default:
		}
	}

	if fatal != nil {
		hist.finish(1)
		watcher.Terminate(errOut, exitFunc)(fatal)
		return nil
	}

	hist.finish(0)
	if stopErr != nil {
		return fmt.Errorf("failed to stop watcher: %w", stopErr)
	}
	fmt.Fprintln(out, "Watcher stopped")
	return nil
}
