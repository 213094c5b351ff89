// Package watcher tails the fastbot log and reacts to the events in it.
//
// The external test engine appends to fastbot.log. The Watcher polls that log
// every second (or sooner, on fsnotify write events), gates the new lines on
// trigger keywords, classifies the captured text, and dispatches per event:
//
//   - exception: fatal. The first one is delivered on Fatal() and passed to
//     OnFatal, which by default prints the error and exits the process with
//     status 1. Polling stops afterwards.
//   - statistics ("Monkey is over!"): logged at info level.
//   - coverage ("Activity of Coverage"): logged at info level.
//
// Every event is also handed to the configured sinks (event history, metrics).
//
// Key features:
//   - Byte-offset tailing; partial lines wait for the next poll
//   - Short settle delay after a trigger so multi-line bodies are read whole
//   - Stop-then-wait shutdown followed by one final drain
//   - Daemon mode support with PID file management
//
// Example usage:
//
//	w, err := watcher.New(watcher.Options{Path: "fastbot.log"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
