// Package tailer reads the bytes appended to a growing log file since the
// last read.
//
// A Tailer owns a single byte-offset cursor into the file. Each ReadDelta call
// seeks to the cursor, reads whatever is currently available up to EOF, and
// advances the cursor past the last complete line it returned. It never waits
// for more data; callers poll on an interval.
//
// A line that is still being written (no terminating newline yet) is left
// unconsumed by ReadDelta so the next poll sees it whole. Drain consumes it
// anyway and is meant for the final read before shutdown.
package tailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxDeltaBytes bounds a single read so a large backlog is consumed over
// several polls instead of in one allocation.
const maxDeltaBytes = 8 << 20

var (
	// ErrClosed is returned by reads on a closed Tailer.
	ErrClosed = errors.New("tailer: closed")

	// ErrTruncated is returned when the file is shorter than the cursor.
	// The cursor is left where it was; there is no truncation recovery.
	ErrTruncated = errors.New("tailer: log file shrank below cursor")
)

// AccessError reports a log file that could not be opened for tailing.
// It unwraps to the underlying error, so errors.Is(err, fs.ErrNotExist)
// and errors.Is(err, fs.ErrPermission) work on it.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("tailer: open %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Options controls where the cursor starts.
type Options struct {
	// FromEnd starts the cursor at the current end of file instead of 0.
	FromEnd bool
}

// Tailer tracks a read cursor into an append-only file.
type Tailer struct {
	path   string
	file   *os.File
	offset int64
}

// Open opens path read-only for tailing. It fails with an *AccessError if the
// file is missing, unreadable, or not a regular file.
func Open(path string, opts Options) (*Tailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}

	// Directories and devices cannot be tailed by offset
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &AccessError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, &AccessError{Path: path, Err: fmt.Errorf("not a regular file")}
	}

	// Start at the end to skip content written before we attached
	t := &Tailer{path: path, file: f}
	if opts.FromEnd {
		t.offset = info.Size()
	}
	return t, nil
}

// Path returns the path the Tailer was opened with.
func (t *Tailer) Path() string {
	return t.path
}

// Offset returns the current cursor.
func (t *Tailer) Offset() int64 {
	return t.offset
}

// ReadDelta returns the complete lines appended since the last read and
// advances the cursor past them. It returns "" with an unchanged cursor when
// nothing new (or only a partial line) is available.
func (t *Tailer) ReadDelta() (string, error) {
	return t.read(false)
}

// Drain is ReadDelta that also consumes a trailing partial line.
func (t *Tailer) Drain() (string, error) {
	return t.read(true)
}

// Close releases the file handle. Further reads return ErrClosed.
func (t *Tailer) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func (t *Tailer) read(partial bool) (string, error) {
	if t.file == nil {
		return "", ErrClosed
	}

	// Compare the current size against the cursor
	info, err := t.file.Stat()
	if err != nil {
		return "", fmt.Errorf("tailer: stat log: %w", err)
	}
	size := info.Size()
	if size < t.offset {
		return "", ErrTruncated
	}
	if size == t.offset {
		return "", nil
	}

	// Seek to the cursor and read what is there now
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("tailer: seek log: %w", err)
	}

	want := size - t.offset
	capped := want > maxDeltaBytes
	if capped {
		want = maxDeltaBytes
	}

	data, err := io.ReadAll(io.LimitReader(t.file, want))
	if err != nil {
		return "", fmt.Errorf("tailer: read log: %w", err)
	}

	// Hold back a partial last line unless draining
	if !partial {
		idx := bytes.LastIndexByte(data, '\n')
		switch {
		case idx >= 0:
			data = data[:idx+1]
		case capped:
			// A single line longer than the cap; hand it over in pieces.
		default:
			return "", nil
		}
	}

	t.offset += int64(len(data))
	return string(data), nil
}
