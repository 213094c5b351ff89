package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// startNotifier watches the log file and turns write events into
// non-blocking wake-ups for the poll loop. The forwarding goroutine exits
// when the fsnotify watcher is closed.
func (w *Watcher) startNotifier() (*fsnotify.Watcher, <-chan struct{}, error) {
	n, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create notifier: %w", err)
	}
	if err := n.Add(w.opts.Path); err != nil {
		n.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", w.opts.Path, err)
	}

	wake := make(chan struct{}, 1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-n.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-n.Errors:
				if !ok {
					return
				}
				w.log.Debug().Err(err).Msg("notifier error")
			}
		}
	}()
	return n, wake, nil
}
