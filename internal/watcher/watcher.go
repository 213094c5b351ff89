package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/botwatch/internal/extractor"
	"github.com/blackwell-systems/botwatch/internal/tailer"
)

const (
	DefaultPollInterval = time.Second
	DefaultSettleDelay  = 10 * time.Millisecond
	DefaultLogPath      = "fastbot.log"
)

var (
	// ErrStopped is returned by Start on a watcher that has been stopped.
	// A stopped watcher cannot be restarted; construct a new one.
	ErrStopped = errors.New("watcher: stopped")

	// ErrRunning is returned by Start and Poll while the poll loop is active.
	ErrRunning = errors.New("watcher: already running")
)

// State is the watcher lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Sink receives every classified event, fatal or not.
type Sink interface {
	Record(ctx context.Context, ev extractor.Event) error
}

// Options configures a Watcher.
type Options struct {
	Path         string
	PollInterval time.Duration
	SettleDelay  time.Duration
	FromEnd      bool

	// Notify wakes the poll loop early on fsnotify write events. The poll
	// interval still applies when notifications are unavailable.
	Notify bool

	Logger *zerolog.Logger
	Sinks  []Sink

	// OnPoll is called after every cycle with the number of bytes read.
	OnPoll func(bytesRead int)

	// OnFatal is called once, from the poll goroutine (or from Poll or Stop
	// when they find the event), when an exception event is detected. Nil
	// means Terminate(os.Stderr, os.Exit).
	//
	// The handler must not call Stop, Start or Poll on the same watcher:
	// Stop waits for the goroutine running the handler and would deadlock.
	// Receive from Fatal() on another goroutine to shut down instead.
	OnFatal func(*FatalError)
}

// Watcher tails a fastbot log and reacts to the events found in it.
type Watcher struct {
	opts Options
	log  zerolog.Logger

	tail *tailer.Tailer
	gate *extractor.Gate

	// cycleMu serializes synchronous cycles (Poll, the final drain) with
	// Start and Stop. Lock order is cycleMu, then mu.
	cycleMu sync.Mutex

	mu       sync.Mutex
	state    State
	stopCh   chan struct{}
	wg       sync.WaitGroup
	notifier *fsnotify.Watcher

	offset    atomic.Int64
	fatal     atomic.Bool
	fatalOnce sync.Once
	fatalCh   chan *FatalError

	truncWarned bool
}

// New opens the log for tailing. The returned watcher is idle until Start.
// A missing or unreadable log is reported as a *tailer.AccessError.
func New(opts Options) (*Watcher, error) {
	// Apply defaults
	if opts.Path == "" {
		opts.Path = DefaultLogPath
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.OnFatal == nil {
		opts.OnFatal = defaultOnFatal
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "watcher").Str("log", opts.Path).Logger()

	// Open the log now; a missing log is a construction-time failure
	t, err := tailer.Open(opts.Path, tailer.Options{FromEnd: opts.FromEnd})
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:    opts,
		log:     logger,
		tail:    t,
		gate:    extractor.NewGate(),
		stopCh:  make(chan struct{}),
		fatalCh: make(chan *FatalError, 1),
	}
	w.offset.Store(t.Offset())
	return w, nil
}

// Start launches the background poll loop. The loop runs until Stop is
// called, ctx is cancelled, or a fatal event is raised.
func (w *Watcher) Start(ctx context.Context) error {
	// Wait for an in-flight Poll so the loop never shares the tailer with it.
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateRunning:
		return ErrRunning
	case StateStopped:
		return ErrStopped
	}

	// File notifications are optional; fall back to the ticker alone
	var wake <-chan struct{}
	if w.opts.Notify {
		n, ch, err := w.startNotifier()
		if err != nil {
			w.log.Warn().Err(err).Msg("file notifications unavailable, polling only")
		} else {
			w.notifier = n
			wake = ch
		}
	}

	// Start the poll loop
	w.state = StateRunning
	w.wg.Add(1)
	go w.run(ctx, wake)

	w.log.Info().
		Dur("poll_interval", w.opts.PollInterval).
		Int64("offset", w.offset.Load()).
		Bool("notify", w.notifier != nil).
		Msg("watcher started")
	return nil
}

// Stop ends the poll loop, waits for it to exit, and then runs one final
// drain over whatever was appended since the last cycle, including a
// trailing partial line. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	w.mu.Lock()
	prev := w.state
	if prev == StateStopped {
		w.mu.Unlock()
		return nil
	}
	// Signal the loop to exit; an idle watcher has no loop to signal
	w.state = StateStopped
	if prev == StateRunning {
		close(w.stopCh)
	}
	notifier := w.notifier
	w.mu.Unlock()

	// Closing the notifier ends its forwarding goroutine
	if notifier != nil {
		notifier.Close()
	}

	// Wait for the loop so the final drain never overlaps a cycle
	w.wg.Wait()

	// Final drain, including an unterminated last line

	_, drainErr := w.cycle(context.Background(), w.tail.Drain)
	if drainErr != nil {
		drainErr = fmt.Errorf("final drain: %w", drainErr)
	}
	closeErr := w.tail.Close()

	w.log.Info().Int64("offset", w.offset.Load()).Msg("watcher stopped")
	return errors.Join(drainErr, closeErr)
}

// Poll runs a single cycle synchronously and returns the number of bytes
// consumed. It is meant for one-shot scans of an idle watcher. Concurrent
// Poll, Start and Stop calls are serialized.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	w.mu.Lock()
	state := w.state
	w.mu.Unlock()

	switch state {
	case StateRunning:
		return 0, ErrRunning
	case StateStopped:
		return 0, ErrStopped
	}
	return w.cycle(ctx, w.tail.ReadDelta)
}

// Fatal delivers at most one *FatalError, the first exception event seen.
func (w *Watcher) Fatal() <-chan *FatalError {
	return w.fatalCh
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Offset returns the byte offset consumed so far.
func (w *Watcher) Offset() int64 {
	return w.offset.Load()
}

// Path returns the log path being tailed.
func (w *Watcher) Path() string {
	return w.opts.Path
}

func (w *Watcher) run(ctx context.Context, wake <-chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		// The first cycle runs immediately to pick up existing content
		if _, err := w.cycle(ctx, w.tail.ReadDelta); err != nil {
			w.log.Warn().Err(err).Msg("poll failed")
		}

		// Polling stops after the first fatal event
		if w.fatal.Load() {
			return
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// cycle performs one read → gate → classify → dispatch pass using read as
// the source of new text.
func (w *Watcher) cycle(ctx context.Context, read func() (string, error)) (int, error) {
	text, err := read()
	if err != nil {
		return 0, w.readError(err)
	}
	n := len(text)

	if w.gate.Feed(text) && w.opts.SettleDelay > 0 {
		// The event body may still be in flight; wait briefly and pick up
		// whatever the writer flushed in the meantime. Best effort only.
		time.Sleep(w.opts.SettleDelay)
		more, err := read()
		if err != nil {
			w.log.Warn().Err(w.readError(err)).Msg("settle read failed")
		} else {
			n += len(more)
			w.gate.Feed(more)
		}
	}

	// Publish progress before dispatch, which may end the process
	w.offset.Store(w.tail.Offset())
	if w.opts.OnPoll != nil {
		w.opts.OnPoll(n)
	}

	// Capturing ends with the cycle; nothing captured, nothing to classify
	blob, ok := w.gate.EndCycle()
	if !ok {
		return n, nil
	}
	w.dispatch(ctx, extractor.Classify(blob))
	return n, nil
}

func (w *Watcher) readError(err error) error {
	// Truncation is not recovered; warn once and keep the cursor
	if errors.Is(err, tailer.ErrTruncated) {
		if !w.truncWarned {
			w.truncWarned = true
			w.log.Warn().Int64("offset", w.tail.Offset()).Msg("log shrank below cursor, waiting for it to grow back")
		}
		return nil
	}
	return err
}
