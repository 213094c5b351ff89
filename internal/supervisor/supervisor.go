// Package supervisor runs a test-engine command as a child process while a
// watcher tails the log it writes, ending the child on the first fatal event.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/botwatch/internal/watcher"
)

// DefaultKillGrace is how long a child gets to exit after SIGTERM before it
// is killed.
const DefaultKillGrace = 5 * time.Second

// Options configures Run.
type Options struct {
	Command []string
	Dir     string
	Env     []string // appended to the current environment

	// Watcher configures the log watcher. Its OnFatal is replaced: Run
	// reports the fatal event through its return values instead.
	Watcher watcher.Options

	// Stdout and Stderr receive the child's output. Unless they are
	// *os.File values, os/exec copies into them from its own goroutines,
	// so a writer shared with the logger must be safe for concurrent use.
	Stdout io.Writer
	Stderr io.Writer

	KillGrace time.Duration
	Logger    *zerolog.Logger
}

// Run starts the command and a watcher on its log. It returns when the
// child exits, a fatal event is detected, or ctx is cancelled.
//
// On a normal exit the watcher is stopped (with its final drain) and the
// child's exit code is returned. A fatal event kills the child and returns
// exit code 1 with the *watcher.FatalError. Cancellation sends SIGTERM to
// the child and returns ctx's error.
func Run(ctx context.Context, opts Options) (int, error) {
	if len(opts.Command) == 0 {
		return 1, errors.New("no command given")
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = DefaultKillGrace
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("component", "supervisor").Logger()

	wopts := opts.Watcher
	if wopts.Path == "" {
		wopts.Path = watcher.DefaultLogPath
	}
	if wopts.Logger == nil {
		wopts.Logger = opts.Logger
	}
	wopts.OnFatal = func(*watcher.FatalError) {}

	// The engine may not have created its log yet.
	if err := touch(wopts.Path); err != nil {
		return 1, err
	}

	w, err := watcher.New(wopts)
	if err != nil {
		return 1, err
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	// Grandchildren may keep the output pipes open after the child is gone.
	cmd.WaitDelay = opts.KillGrace
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	if err := cmd.Start(); err != nil {
		_ = w.Stop()
		return 1, fmt.Errorf("failed to start %s: %w", opts.Command[0], err)
	}
	log.Info().Strs("command", opts.Command).Int("pid", cmd.Process.Pid).Msg("child started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if err := w.Start(ctx); err != nil {
		_ = cmd.Process.Kill()
		<-done
		_ = w.Stop()
		return 1, fmt.Errorf("failed to start watcher: %w", err)
	}

	select {
	case waitErr := <-done:
		stopErr := w.Stop()
		// The final drain may still surface a fatal event.
		select {
		case fatal := <-w.Fatal():
			return 1, fatal
		default:
		}
		code := exitCode(cmd, waitErr)
		log.Info().Int("exit_code", code).Msg("child exited")
		if stopErr != nil {
			return code, fmt.Errorf("failed to stop watcher: %w", stopErr)
		}
		return code, nil

	case fatal := <-w.Fatal():
		log.Warn().Int("pid", cmd.Process.Pid).Msg("fatal event, killing child")
		_ = cmd.Process.Kill()
		<-done
		_ = w.Stop()
		return 1, fatal

	case <-ctx.Done():
		log.Info().Int("pid", cmd.Process.Pid).Msg("interrupted, terminating child")
		terminate(cmd, done, opts.KillGrace)
		_ = w.Stop()
		return exitCode(cmd, nil), ctx.Err()
	}
}

// terminate sends SIGTERM and falls back to SIGKILL after grace.
func terminate(cmd *exec.Cmd, done <-chan error, grace time.Duration) {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-done
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}
	if waitErr != nil {
		return 1
	}
	return 0
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log %s: %w", path, err)
	}
	return f.Close()
}
