package watcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/blackwell-systems/botwatch/internal/extractor"
)

// FatalError is raised when the log reports an internal error in the test
// engine. It is never retried or swallowed.
type FatalError struct {
	Body    string
	LogPath string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("[Error] Exception while running fastbot:\n%s\nSee %s for details.", e.Body, e.LogPath)
}

// Terminate returns an OnFatal handler that writes the error to w and calls
// exit(1). It does not return when exit is os.Exit.
func Terminate(w io.Writer, exit func(int)) func(*FatalError) {
	return func(err *FatalError) {
		fmt.Fprintln(w, err.Error())
		exit(1)
	}
}

var defaultOnFatal = Terminate(os.Stderr, os.Exit)

// dispatch reports informational events first so they are not lost when the
// fatal handler ends the process.
func (w *Watcher) dispatch(ctx context.Context, events []extractor.Event) {
	var fatal *FatalError

	for _, ev := range events {
		w.record(ctx, ev)

		switch ev.Kind {
		case extractor.KindException:
			if fatal == nil {
				fatal = &FatalError{Body: ev.Body, LogPath: w.opts.Path}
			}
		case extractor.KindStatistics:
			w.log.Info().Str("kind", ev.Kind.String()).Msg("[INFO] Fastbot exit:\n" + ev.Body)
		case extractor.KindCoverage:
			e := w.log.Info().Str("kind", ev.Kind.String())
			if ev.Coverage != nil {
				e = e.Float64("coverage_pct", ev.Coverage.Percent)
			}
			e.Msg("[INFO] Cov info:\n" + ev.Body)
		}
	}

	if fatal != nil {
		w.raise(fatal)
	}
}

func (w *Watcher) record(ctx context.Context, ev extractor.Event) {
	for _, s := range w.opts.Sinks {
		if err := s.Record(ctx, ev); err != nil {
			w.log.Warn().Err(err).Str("kind", ev.Kind.String()).Msg("sink failed")
		}
	}
}

func (w *Watcher) raise(err *FatalError) {
	w.fatalOnce.Do(func() {
		w.fatal.Store(true)
		w.log.Error().Str("kind", extractor.KindException.String()).Msg("fatal event detected")
		w.fatalCh <- err
		w.opts.OnFatal(err)
	})
}
