package extractor

import "strings"

// Keywords are the trigger phrases that start line capture. Matching is a
// case-sensitive substring test.
var Keywords = []string{
	"Internal error",
	"Monkey is over!",
	"Activity of Coverage",
}

// Gate accumulates log lines into a capture buffer once a trigger keyword has
// been seen. Capturing is per cycle: EndCycle resets it, and the buffer is
// handed off and cleared at the same time.
//
// A Gate is not safe for concurrent use.
type Gate struct {
	capturing bool
	lines     []string
}

// NewGate returns an empty, non-capturing Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Feed processes the lines of chunk in order. Line terminators are kept so
// the concatenated buffer reproduces the input text, except that CRLF is
// stored as LF so the patterns match logs captured through a pty. It
// reports whether the Gate entered the capturing state during this call.
func (g *Gate) Feed(chunk string) bool {
	triggered := false
	for _, line := range strings.SplitAfter(chunk, "\n") {
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "\r\n") {
			line = line[:len(line)-2] + "\n"
		}
		if !g.capturing && containsKeyword(line) {
			g.capturing = true
			triggered = true
		}
		if g.capturing {
			g.lines = append(g.lines, line)
		}
	}
	return triggered
}

// Capturing reports whether the Gate is currently capturing.
func (g *Gate) Capturing() bool {
	return g.capturing
}

// Buffered returns the number of lines waiting in the capture buffer.
func (g *Gate) Buffered() int {
	return len(g.lines)
}

// EndCycle stops capturing and, if anything was captured, returns the joined
// buffer and clears it.
func (g *Gate) EndCycle() (string, bool) {
	g.capturing = false
	if len(g.lines) == 0 {
		return "", false
	}
	blob := strings.Join(g.lines, "")
	g.lines = g.lines[:0]
	return blob, true
}

func containsKeyword(line string) bool {
	for _, kw := range Keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}
