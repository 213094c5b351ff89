package app

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestWatchCommand(t *testing.T) {
	// Test that watch command is properly configured
	if watchCmd.Use != "watch" {
		t.Errorf("expected Use to be 'watch', got '%s'", watchCmd.Use)
	}

	if watchCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if watchCmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	if watchCmd.Example == "" {
		t.Error("expected Example to be set")
	}

	if watchCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		flagName     string
		shouldHidden bool
		defValue     string
	}{
		{"daemon", false, "false"},
		{"daemon-child", true, "false"},
		{"pid-file", false, ""},
		{"log-file", false, ""},
		{"stop", false, "false"},
		{"from-end", false, "false"},
		{"poll", false, "0s"},
		{"notify", false, "false"},
		{"metrics-addr", false, ""},
		{"no-history", false, "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := watchCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("expected flag '%s' to be registered", tt.flagName)
			}

			if !tt.shouldHidden && flag.Usage == "" {
				t.Errorf("expected flag '%s' to have usage text", tt.flagName)
			}

			if flag.Hidden != tt.shouldHidden {
				t.Errorf("expected flag '%s' hidden to be %v, got %v", tt.flagName, tt.shouldHidden, flag.Hidden)
			}

			if flag.DefValue != tt.defValue {
				t.Errorf("expected flag '%s' default to be %q, got %q", tt.flagName, tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestWatchCommandLongDescription(t *testing.T) {
	longDesc := strings.ToLower(watchCmd.Long)

	for _, keyword := range []string{"internal error", "monkey is over!", "activity of coverage", "foreground", "daemon", "stop"} {
		if !strings.Contains(longDesc, keyword) {
			t.Errorf("expected long description to mention '%s'", keyword)
		}
	}
}

func TestWatch_MissingLog(t *testing.T) {
	dir := testEnv(t)

	res := execute(t, "--log", filepath.Join(dir, "missing.log"), "--db", filepath.Join(dir, "h.db"), "watch")
	if res.err == nil {
		t.Fatal("expected error for missing log")
	}
	if !strings.Contains(res.err.Error(), "missing.log") {
		t.Errorf("error should name the log: %v", res.err)
	}
}

func TestWatch_FatalEventExitsOne(t *testing.T) {
	dir := testEnv(t)
	logFile := filepath.Join(dir, "fastbot.log")
	writeFile(t, logFile, "[Fastbot][2024-01-01 00:00:00.000] Monkey is over!\nTotal events: 10\n[Fastbot][2024-01-01 00:00:00.000] Internal error\nNullPointerException at Foo.bar\n")

	res := execute(t, "--log", logFile, "--db", filepath.Join(dir, "h.db"), "--log-format", "json", "watch", "--poll", "10ms")
	if res.err != nil {
		t.Fatalf("watch error: %v", res.err)
	}
	if res.exitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.exitCode)
	}
	if !strings.Contains(res.stderr, "[Error] Exception while running fastbot:\nNullPointerException at Foo.bar\nSee "+logFile+" for details.") {
		t.Errorf("stderr missing fatal message:\n%s", res.stderr)
	}
	if !strings.Contains(res.stderr, "Fastbot exit") {
		t.Errorf("statistics event should be logged before exit:\n%s", res.stderr)
	}

	// The run is recorded as failed with both events.
	hist := execute(t, "--db", filepath.Join(dir, "h.db"), "history", "--run", "latest")
	if hist.err != nil {
		t.Fatalf("history error: %v", hist.err)
	}
	if !strings.Contains(hist.stdout, "exception") || !strings.Contains(hist.stdout, "statistics") {
		t.Errorf("history missing events:\n%s", hist.stdout)
	}
}

func TestWatch_StopWhenNotRunning(t *testing.T) {
	dir := testEnv(t)

	res := execute(t, "watch", "--stop", "--pid-file", filepath.Join(dir, "watch.pid"))
	if res.err != nil {
		t.Fatalf("watch --stop error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Daemon is not running") {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestWatch_DaemonRequiresExistingLog(t *testing.T) {
	dir := testEnv(t)

	res := execute(t, "--log", filepath.Join(dir, "missing.log"), "watch", "--daemon", "--pid-file", filepath.Join(dir, "watch.pid"))
	if res.err == nil {
		t.Fatal("expected error when daemonizing on a missing log")
	}
}
