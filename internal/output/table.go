// Package output provides terminal output utilities for botwatch.
//
// This package includes:
//   - Table rendering for recorded runs, events and coverage series
//   - A byte progress bar for one-shot log scans
//   - Spinners for daemon start/stop
//
// Tables are plain text; ANSI colors are added only when stdout is a TTY
// and NO_COLOR is unset. Progress indicators are safe for concurrent use.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/botwatch/internal/extractor"
	"github.com/blackwell-systems/botwatch/internal/store"
)

// ANSI color codes for event kinds
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func kindColor(k extractor.Kind) string {
	switch k {
	case extractor.KindException:
		return colorRed
	case extractor.KindStatistics:
		return colorGreen
	case extractor.KindCoverage:
		return colorYellow
	default:
		return colorGray
	}
}

// RenderRunTable renders recorded runs in the order given.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s  %-15s  %-9s  %-4s  %-6s  %s\n",
		"Run", "Started", "Duration", "Exit", "Events", "Log"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, run := range runs {
		duration := "running"
		if run.FinishedAt != nil {
			duration = formatDuration(run.FinishedAt.Sub(run.StartedAt))
		}
		exit := "-"
		if run.ExitCode != nil {
			exit = fmt.Sprintf("%d", *run.ExitCode)
			if *run.ExitCode != 0 {
				exit = colorize(colorRed, exit)
			}
		}

		sb.WriteString(fmt.Sprintf("%-8s  %-15s  %-9s  %-4s  %-6d  %s\n",
			ShortID(run.ID),
			formatRelativeTime(run.StartedAt),
			duration,
			exit,
			run.EventCount,
			truncatePath(run.LogPath, 30)))
	}

	return sb.String()
}

// RenderEventTable renders recorded events, one line each, with the first
// line of the body as summary.
func RenderEventTable(events []*store.Event) string {
	if len(events) == 0 {
		return "No events recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-6s  %-10s  %-15s  %-8s  %s\n",
		"ID", "Kind", "Detected", "Coverage", "Summary"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, ev := range events {
		coverage := "-"
		if ev.CoveragePct != nil {
			coverage = fmt.Sprintf("%.1f%%", *ev.CoveragePct)
		}

		sb.WriteString(fmt.Sprintf("%-6d  %s  %-15s  %-8s  %s\n",
			ev.ID,
			colorize(kindColor(ev.Kind), fmt.Sprintf("%-10s", ev.Kind)),
			formatRelativeTime(ev.DetectedAt),
			coverage,
			truncate(firstLine(ev.Body), 45)))
	}

	return sb.String()
}

// RenderEvent renders a single event with its full body, as printed by scan.
func RenderEvent(ev extractor.Event) string {
	var sb strings.Builder

	header := "[" + strings.ToUpper(ev.Kind.String()) + "]"
	sb.WriteString(colorize(kindColor(ev.Kind), header))
	if ev.Coverage != nil {
		sb.WriteString(fmt.Sprintf(" %.1f%%", ev.Coverage.Percent))
	}
	sb.WriteString("\n")

	for _, line := range strings.Split(ev.Body, "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderCoverageSeries renders coverage samples with a bar per sample.
func RenderCoverageSeries(points []store.CoveragePoint) string {
	if len(points) == 0 {
		return "No coverage samples recorded.\n"
	}

	const width = 40
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-19s  %7s  %s\n", "Time", "Percent", ""))
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")

	for _, p := range points {
		pct := p.Percent
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		filled := int(pct * width / 100)

		sb.WriteString(fmt.Sprintf("%-19s  %6.1f%%  %s\n",
			p.At.Local().Format("2006-01-02 15:04:05"),
			p.Percent,
			strings.Repeat("█", filled)))
	}
	return sb.String()
}

// ShortID returns the first 8 characters of a run ID.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatSize converts bytes to human-readable size (GB, MB, KB).
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration rounds d to a short display form (e.g. "1h02m", "45s").
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncatePath keeps the end of a path, where the file name is.
func truncatePath(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
