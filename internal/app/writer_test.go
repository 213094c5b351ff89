package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLockWriter_KeepsFiles(t *testing.T) {
	if got := lockWriter(os.Stderr); got != os.Stderr {
		t.Errorf("lockWriter(os.Stderr) = %T, want the file itself", got)
	}
}

func TestLockWriter_WrapsOnce(t *testing.T) {
	var buf bytes.Buffer
	w := lockWriter(&buf)
	if _, ok := w.(*lockedWriter); !ok {
		t.Fatalf("lockWriter(*bytes.Buffer) = %T, want *lockedWriter", w)
	}
	if again := lockWriter(w); again != w {
		t.Error("lockWriter should not wrap a locked writer twice")
	}
}

func TestLockWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	out := lockWriter(&buf)
	errw := lockWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		w := out
		if i%2 == 1 {
			w = errw
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "line\n"); got != 800 {
		t.Errorf("wrote %d lines, want 800", got)
	}
}

func TestRun_ChildOutputWhileLogging(t *testing.T) {
	dir := testEnv(t)
	logFile := filepath.Join(dir, "fastbot.log")

	// The child writes to both streams while the watcher logs every poll.
	script := "i=0; while [ $i -lt 50 ]; do echo out $i; echo err $i >&2; " +
		"printf '[Fastbot][t] Activity of Coverage: A 1.0%%\\n' >> " + logFile + "; i=$((i+1)); done"
	res := execute(t, "--log", logFile, "--log-level", "debug", "--log-format", "json",
		"run", "--poll", "1ms", "--no-history", "--", "sh", "-c", script)
	if res.err != nil {
		t.Fatalf("run error: %v", res.err)
	}
	if res.exitCode != -1 {
		t.Errorf("exit code = %d, want no exit", res.exitCode)
	}
	if !strings.Contains(res.stdout, "out 49") {
		t.Errorf("stdout missing child output:\n%s", res.stdout)
	}
	if !strings.Contains(res.stderr, "err 49") || !strings.Contains(res.stderr, "Cov info") {
		t.Errorf("stderr missing child output or watcher logs:\n%s", res.stderr)
	}
}
