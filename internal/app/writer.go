package app

import (
	"io"
	"os"
	"sync"
)

// outputMu serializes every wrapped writer, so stdout and stderr stay safe
// even when a test points both at the same buffer.
var outputMu sync.Mutex

// lockedWriter guards a writer shared between the logger and the copy
// goroutines os/exec starts for a child's output.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// lockWriter wraps w unless it is an *os.File, whose writes are already
// safe for concurrent use and which must keep its Fd for TTY detection.
func lockWriter(w io.Writer) io.Writer {
	switch w.(type) {
	case *os.File, *lockedWriter:
		return w
	}
	return &lockedWriter{mu: &outputMu, w: w}
}
