package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/botwatch/internal/extractor"
	"github.com/blackwell-systems/botwatch/internal/output"
	"github.com/blackwell-systems/botwatch/internal/watcher"
)

var (
	scanRecord bool
	scanQuiet  bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Classify a whole fastbot log once",
		Long: `Read the fastbot log from the beginning, classify every event in it and
print the events. Exits with status 1 when the log contains an internal
error, which makes it usable as a post-run check in scripts.

Events are printed as they would have been seen by "botwatch watch" polling
the finished file.`,
		Example: `  # Check a finished log
  botwatch scan --log fastbot.log

  # Check and store the events in the history database
  botwatch scan --log fastbot.log --record`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanRecord, "record", false, "record the events in the history database")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "only report the result")
}

// printSink writes each event to w as it is dispatched.
type printSink struct {
	mu     sync.Mutex
	w      io.Writer
	quiet  bool
	counts map[extractor.Kind]int
}

func newPrintSink(w io.Writer, quiet bool) *printSink {
	return &printSink{w: w, quiet: quiet, counts: make(map[extractor.Kind]int)}
}

func (s *printSink) Record(_ context.Context, ev extractor.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[ev.Kind]++
	if !s.quiet {
		fmt.Fprint(s.w, output.RenderEvent(ev))
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	info, err := os.Stat(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("cannot scan %s: %w", cfg.LogPath, err)
	}

	var hist *history
	if scanRecord {
		h, err := openHistory(cfg.LogPath, nil)
		if err != nil {
			return err
		}
		hist = h
	}

	sink := newPrintSink(out, scanQuiet)
	progress := output.NewByteProgress(info.Size(), cfg.LogPath)
	progress.SetWriter(cmd.ErrOrStderr())

	opts := watcherOptions()
	opts.FromEnd = false
	opts.Sinks = []watcher.Sink{sink}
	opts.OnPoll = progress.Add
	opts.OnFatal = func(*watcher.FatalError) {}
	// Events are printed by the sink; keep the log for problems only.
	quietLog := logger
	if quietLog.GetLevel() < zerolog.WarnLevel {
		quietLog = quietLog.Level(zerolog.WarnLevel)
	}
	opts.Logger = &quietLog
	hist.attach(&opts)

	w, err := watcher.New(opts)
	if err != nil {
		hist.finish(1)
		return fmt.Errorf("failed to open log: %w", err)
	}

	for {
		n, err := w.Poll(cmd.Context())
		if err != nil {
			w.Stop()
			hist.finish(1)
			return fmt.Errorf("failed to read log: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if err := w.Stop(); err != nil {
		hist.finish(1)
		return err
	}
	progress.Finish()

	fmt.Fprintf(out, "\n%d exception, %d statistics, %d coverage event(s) in %s (%s)\n",
		sink.counts[extractor.KindException],
		sink.counts[extractor.KindStatistics],
		sink.counts[extractor.KindCoverage],
		cfg.LogPath,
		output.FormatSize(progress.Read()))

	select {
	case fatal := <-w.Fatal():
		hist.finish(1)
		return fatal
	default:
	}
	hist.finish(0)
	return nil
}
