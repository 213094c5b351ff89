package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which pattern produced an Event.
type Kind int

const (
	KindException Kind = iota
	KindStatistics
	KindCoverage
)

func (k Kind) String() string {
	switch k {
	case KindException:
		return "exception"
	case KindStatistics:
		return "statistics"
	case KindCoverage:
		return "coverage"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exception":
		return KindException, true
	case "statistics":
		return KindStatistics, true
	case "coverage":
		return KindCoverage, true
	}
	return 0, false
}

// Event is one classified match from a flushed capture buffer.
type Event struct {
	Kind Kind
	Body string

	// Coverage is set for KindCoverage events whose line carries a percentage.
	Coverage *CoverageSample
}

// CoverageSample is the numeric part of a coverage line.
type CoverageSample struct {
	// Timestamp is zero when the line has no [Fastbot][...] prefix.
	Timestamp time.Time
	Percent   float64
}

var (
	patternException  = regexp.MustCompile(`\[Fastbot\].+Internal\serror\n([\s\S]*)`)
	patternStatistics = regexp.MustCompile(`.+Monkey\sis\sover!\n([\s\S]+)`)
	patternCoverage   = regexp.MustCompile(`(.+Activity\sof\sCoverage.+)`)

	coverageTimestamp = regexp.MustCompile(`\[Fastbot\]\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})\]`)
	coveragePercent   = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

const fastbotTimeLayout = "2006-01-02 15:04:05.000"

// Classify runs the exception, coverage and statistics patterns against the
// whole blob. Every pattern is evaluated; a match whose body is empty after
// trimming is dropped. CRLF line endings are treated as LF.
func Classify(blob string) []Event {
	blob = strings.ReplaceAll(blob, "\r\n", "\n")

	var events []Event

	if m := patternException.FindStringSubmatch(blob); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			events = append(events, Event{Kind: KindException, Body: body})
		}
	}

	if m := patternCoverage.FindStringSubmatch(blob); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			ev := Event{Kind: KindCoverage, Body: body}
			if sample, ok := ParseCoverageSample(body); ok {
				ev.Coverage = &sample
			}
			events = append(events, ev)
		}
	}

	if m := patternStatistics.FindStringSubmatch(blob); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			events = append(events, Event{Kind: KindStatistics, Body: body})
		}
	}

	return events
}

// ParseCoverageSample pulls the last percentage and the optional Fastbot
// timestamp out of a coverage line.
func ParseCoverageSample(line string) (CoverageSample, bool) {
	pcts := coveragePercent.FindAllStringSubmatch(line, -1)
	if len(pcts) == 0 {
		return CoverageSample{}, false
	}
	pct, err := strconv.ParseFloat(pcts[len(pcts)-1][1], 64)
	if err != nil {
		return CoverageSample{}, false
	}

	sample := CoverageSample{Percent: pct}
	if m := coverageTimestamp.FindStringSubmatch(line); m != nil {
		if ts, err := time.ParseInLocation(fastbotTimeLayout, m[1], time.Local); err == nil {
			sample.Timestamp = ts
		}
	}
	return sample, true
}
