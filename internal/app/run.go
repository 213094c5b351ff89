package app

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/supervisor"
	"github.com/blackwell-systems/botwatch/internal/watcher"
)

var (
	runDir string

	runCmd = &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run the test engine and watch its log",
		Long: `Start the test engine as a child process and watch the fastbot log it
writes.

  • When the child exits, the log is read one last time and botwatch exits
    with the child's status.
  • When the log reports an internal error, the child is killed, the error
    is printed and botwatch exits with status 1.
  • Ctrl+C forwards SIGTERM to the child.

The log file is created if the engine has not written it yet.`,
		Example: `  # Run a Fastbot session and stop it on the first internal error
  botwatch run --log fastbot.log -- adb shell CLASSPATH=/sdcard/monkeyq.jar ...

  # Run from another directory with metrics
  botwatch run --dir ./device --metrics-addr :9464 -- ./start.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for the command")
	runCmd.Flags().BoolVar(&watchFromEnd, "from-end", false, "skip content already in the log")
	runCmd.Flags().DurationVar(&watchPoll, "poll", 0, "poll interval (default: 1s)")
	runCmd.Flags().BoolVar(&watchNotify, "notify", false, "wake on file change notifications")
	runCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&watchNoHistory, "no-history", false, "do not record events in the history database")
}

func runRun(cmd *cobra.Command, args []string) error {
	applyWatchFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var hist *history
	if !watchNoHistory {
		h, err := openHistory(cfg.LogPath, args)
		if err != nil {
			return err
		}
		hist = h
	}

	opts := watcherOptions()
	hist.attach(&opts)

	m, err := startMetrics(cfg.MetricsAddr, &opts)
	if err != nil {
		hist.finish(1)
		return err
	}
	defer stopMetrics(m)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	l := logger
	code, err := supervisor.Run(ctx, supervisor.Options{
		Command: args,
		Dir:     runDir,
		Watcher: opts,
		Stdout:  lockWriter(cmd.OutOrStdout()),
		Stderr:  errOut,
		Logger:  &l,
	})

	var fatal *watcher.FatalError
	switch {
	case errors.As(err, &fatal):
		hist.finish(1)
		watcher.Terminate(errOut, exitFunc)(fatal)
		return nil
	case err != nil && ctx.Err() != nil:
		hist.finish(code)
		return fmt.Errorf("interrupted: %w", err)
	case err != nil:
		hist.finish(code)
		return err
	}

	hist.finish(code)
	if code != 0 {
		exitFunc(code)
	}
	return nil
}
