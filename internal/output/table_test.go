package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/botwatch/internal/extractor"
	"github.com/blackwell-systems/botwatch/internal/store"
)

func TestRenderRunTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderRunTable(nil); got != "No runs recorded.\n" {
		t.Errorf("empty table = %q", got)
	}

	started := time.Now().Add(-2 * time.Hour)
	finished := started.Add(90 * time.Second)
	code := 1
	runs := []*store.Run{
		{ID: "0123456789abcdef", LogPath: "fastbot.log", StartedAt: started, FinishedAt: &finished, ExitCode: &code, EventCount: 3},
		{ID: "fedcba98", LogPath: "/very/long/path/to/some/device/output/fastbot.log", StartedAt: time.Now()},
	}

	out := RenderRunTable(runs)
	for _, want := range []string{"Run", "Started", "01234567", "2 hours ago", "1m30s", "fastbot.log", "running", "just now", "...", "output/fastbot.log"} {
		if !strings.Contains(out, want) {
			t.Errorf("run table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Errorf("run table should shorten IDs:\n%s", out)
	}
}

func TestRenderEventTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderEventTable(nil); got != "No events recorded.\n" {
		t.Errorf("empty table = %q", got)
	}

	pct := 42.5
	events := []*store.Event{
		{ID: 1, Kind: extractor.KindCoverage, Body: "Activity of Coverage 42.5%", DetectedAt: time.Now(), CoveragePct: &pct},
		{ID: 2, Kind: extractor.KindException, Body: "NullPointerException\n\tat Foo.bar", DetectedAt: time.Now()},
	}

	out := RenderEventTable(events)
	for _, want := range []string{"coverage", "42.5%", "exception", "NullPointerException"} {
		if !strings.Contains(out, want) {
			t.Errorf("event table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Foo.bar") {
		t.Errorf("event table should only show the first body line:\n%s", out)
	}
}

func TestRenderEvent(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	out := RenderEvent(extractor.Event{Kind: extractor.KindStatistics, Body: "Total events: 5000\nCrashes: 0"})
	want := "[STATISTICS]\n  Total events: 5000\n  Crashes: 0\n"
	if out != want {
		t.Errorf("RenderEvent = %q, want %q", out, want)
	}

	out = RenderEvent(extractor.Event{
		Kind:     extractor.KindCoverage,
		Body:     "cov",
		Coverage: &extractor.CoverageSample{Percent: 12.34},
	})
	if !strings.HasPrefix(out, "[COVERAGE] 12.3%\n") {
		t.Errorf("RenderEvent coverage header = %q", out)
	}
}

func TestRenderCoverageSeries(t *testing.T) {
	if got := RenderCoverageSeries(nil); got != "No coverage samples recorded.\n" {
		t.Errorf("empty series = %q", got)
	}

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	out := RenderCoverageSeries([]store.CoveragePoint{
		{At: at, Percent: 50},
		{At: at.Add(time.Minute), Percent: 150},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got:\n%s", out)
	}
	if !strings.Contains(lines[2], "2024-01-01 12:00:00") || !strings.Contains(lines[2], "50.0%") {
		t.Errorf("row = %q", lines[2])
	}
	if strings.Count(lines[2], "█") != 20 {
		t.Errorf("50%% row should have a 20-cell bar: %q", lines[2])
	}
	if strings.Count(lines[3], "█") != 40 {
		t.Errorf("over-100%% row should clamp to a full bar: %q", lines[3])
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID(abc) = %q", got)
	}
	if got := ShortID("0123456789"); got != "01234567" {
		t.Errorf("ShortID = %q, want 01234567", got)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{45 * time.Second, "45s"},
		{62 * time.Second, "1m02s"},
		{time.Hour + 2*time.Minute, "1h02m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{time.Now(), "just now"},
		{time.Now().Add(-1 * time.Minute), "1 minute ago"},
		{time.Now().Add(-5 * time.Minute), "5 minutes ago"},
		{time.Now().Add(-3 * time.Hour), "3 hours ago"},
		{time.Now().Add(-24 * time.Hour), "1 day ago"},
		{time.Now().Add(-72 * time.Hour), "3 days ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.t); got != tt.want {
			t.Errorf("formatRelativeTime() = %q, want %q", got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a long string", 8); got != "a lon..." {
		t.Errorf("truncate = %q, want %q", got, "a lon...")
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Errorf("truncate = %q, want %q", got, "ab")
	}
}

func TestTruncatePath(t *testing.T) {
	if got := truncatePath("a.log", 10); got != "a.log" {
		t.Errorf("truncatePath = %q", got)
	}
	if got := truncatePath("/very/long/dir/fastbot.log", 14); got != "...fastbot.log" {
		t.Errorf("truncatePath = %q, want %q", got, "...fastbot.log")
	}
}
