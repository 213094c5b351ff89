package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ByteProgress shows how much of a log has been read.
// Example: [=========>          ]  45% 1.2 MB / 2.6 MB fastbot.log
type ByteProgress struct {
	total  int64
	read   int64
	label  string
	width  int
	mu     sync.Mutex
	writer io.Writer
}

// NewByteProgress creates a progress bar over total bytes.
func NewByteProgress(total int64, label string) *ByteProgress {
	return &ByteProgress{
		total:  total,
		label:  label,
		width:  30,
		writer: os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ByteProgress) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Add records n more bytes read and redraws the bar. A log that grows
// past the initial total extends the total.
func (p *ByteProgress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.read += int64(n)
	if p.read > p.total {
		p.total = p.read
	}
	p.render(false)
}

// Read returns the bytes recorded so far.
func (p *ByteProgress) Read() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read
}

// Finish draws the final state and moves to a new line.
func (p *ByteProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render(true)
}

// render draws the bar (must be called with lock held). Non-TTY writers
// only get the final line.
func (p *ByteProgress) render(final bool) {
	tty := writerIsTTY(p.writer)
	if !tty && !final {
		return
	}

	percentage := 100
	filled := p.width
	if p.total > 0 {
		percentage = int(p.read * 100 / p.total)
		filled = int(p.read * int64(p.width) / p.total)
	}

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	line := fmt.Sprintf("%s %3d%% %s / %s %s", bar.String(), percentage, FormatSize(p.read), FormatSize(p.total), p.label)
	if tty {
		fmt.Fprintf(p.writer, "\r%s", line)
		if final {
			fmt.Fprintln(p.writer)
		}
		return
	}
	fmt.Fprintln(p.writer, line)
}

// Spinner displays an animated spinner with a message.
// Example: |  Stopping daemon... (4s remaining)
type Spinner struct {
	message   string
	running   bool
	chars     []string
	mu        sync.Mutex
	writer    io.Writer
	ticker    *time.Ticker
	done      chan struct{}
	timeout   time.Duration
	startTime time.Time
}

// NewSpinner creates a spinner writing to stdout. Call Start to show it.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stdout,
		done:    make(chan struct{}),
	}
}

// WithTimeout makes the spinner show the time left until timeout.
// It must be called before Start and returns the spinner for chaining.
func (s *Spinner) WithTimeout(timeout time.Duration) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	return s
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the spinner animation.
// On a non-TTY writer the message is printed once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.startTime = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)

	go func() {
		idx := 0
		for {
			select {
			case <-s.ticker.C:
				s.mu.Lock()
				if !s.running {
					s.mu.Unlock()
					return
				}
				fmt.Fprintf(s.writer, "\r%s  %s", s.chars[idx], s.formatMessage())
				idx = (idx + 1) % len(s.chars)
				s.mu.Unlock()

			case <-s.done:
				return
			}
		}
	}()
}

// formatMessage must be called with lock held.
func (s *Spinner) formatMessage() string {
	if s.timeout <= 0 {
		return s.message
	}
	remaining := s.timeout - time.Since(s.startTime)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("%s (%ds remaining)", s.message, int(remaining.Seconds()))
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.formatMessage())+4))
	}
}

// StopWithMessage stops the spinner and displays a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
