package app

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/botwatch/internal/metrics"
	"github.com/blackwell-systems/botwatch/internal/store"
	"github.com/blackwell-systems/botwatch/internal/watcher"
)

// watcherOptions builds watcher options from the loaded config.
func watcherOptions() watcher.Options {
	l := logger
	return watcher.Options{
		Path:         cfg.LogPath,
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
		FromEnd:      cfg.FromEnd,
		Notify:       cfg.Notify,
		Logger:       &l,
	}
}

// history is an open run in the history database.
type history struct {
	store    *store.Store
	run      *store.Run
	recorder *store.Recorder
}

// openHistory opens the database and starts a run for logPath.
func openHistory(logPath string, command []string) (*history, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	run, err := st.InsertRun(logPath, strings.Join(command, " "))
	if err != nil {
		st.Close()
		return nil, err
	}

	logger.Debug().Str("run_id", run.ID).Str("db", path).Msg("recording run")
	return &history{store: st, run: run, recorder: store.NewRecorder(st, run.ID)}, nil
}

// finish records the exit code and closes the database. Safe on nil.
func (h *history) finish(exitCode int) {
	if h == nil {
		return
	}
	if err := h.store.FinishRun(h.run.ID, exitCode); err != nil {
		logger.Warn().Err(err).Str("run_id", h.run.ID).Msg("failed to finish run")
	}
	h.store.Close()
}

// attach wires the recorder into opts. Safe on nil.
func (h *history) attach(opts *watcher.Options) {
	if h == nil {
		return
	}
	opts.Sinks = append(opts.Sinks, h.recorder)
}

// startMetrics serves Prometheus metrics on addr and wires them into opts.
// It returns nil when addr is empty.
func startMetrics(addr string, opts *watcher.Options) (*metrics.Metrics, error) {
	if addr == "" {
		return nil, nil
	}

	m := metrics.New("")
	if err := m.StartServer(addr, logger); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	opts.Sinks = append(opts.Sinks, m)
	prev := opts.OnPoll
	opts.OnPoll = func(n int) {
		m.ObservePoll(n)
		if prev != nil {
			prev(n)
		}
	}
	return m, nil
}

func stopMetrics(m *metrics.Metrics) {
	if m == nil {
		return
	}
	if err := m.StopServer(); err != nil {
		logger.Warn().Err(err).Msg("failed to stop metrics server")
	}
}
