// Package dataproc implements the business logic behind the gated
// routes: log summarization, CSV validation and cleaning, and PDF text
// extraction. Nothing here knows about payments.
package dataproc

import (
	"regexp"
	"sort"
	"strings"
)

var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bERROR\b`),
	regexp.MustCompile(`\bException\b`),
	regexp.MustCompile(`\bTraceback\b`),
	regexp.MustCompile(`(?i)\bFATAL\b`),
}

var (
	timestampRe  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?Z?\b`)
	hexRe        = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	numberRe     = regexp.MustCompile(`\b\d+\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Issue is one normalized error signature and how often it occurred.
type Issue struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
}

type LogSummary struct {
	Lines          int            `json:"lines"`
	ErrorLikeLines int            `json:"error_like_lines"`
	TopIssues      []Issue        `json:"top_issues"`
	Counts         map[string]int `json:"counts"`
}

// SummarizeLogs groups log lines by normalized signature (timestamps,
// hex ids and numbers masked out) and reports the topK most frequent.
// Error-like lines are preferred; if none match, all lines are counted.
func SummarizeLogs(text string, topK int) LogSummary {
	lines := splitLines(text)
	if len(lines) == 0 {
		return LogSummary{TopIssues: []Issue{}, Counts: map[string]int{}}
	}
	if topK <= 0 {
		topK = 10
	}

	var errorLines []string
	for _, ln := range lines {
		for _, p := range errorPatterns {
			if p.MatchString(ln) {
				errorLines = append(errorLines, ln)
				break
			}
		}
	}

	source := errorLines
	if len(source) == 0 {
		source = lines
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(source))
	for _, ln := range source {
		sig := lineSignature(ln)
		if _, seen := counts[sig]; !seen {
			order = append(order, sig)
		}
		counts[sig]++
	}

	// Highest count first; first-seen order breaks ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topK {
		order = order[:topK]
	}
	top := make([]Issue, len(order))
	for i, sig := range order {
		top[i] = Issue{Signature: sig, Count: counts[sig]}
	}

	return LogSummary{
		Lines:          len(lines),
		ErrorLikeLines: len(errorLines),
		TopIssues:      top,
		Counts:         map[string]int{"unique_signatures": len(counts)},
	}
}

// lineSignature masks volatile tokens so recurring issues collapse to
// one bucket.
func lineSignature(ln string) string {
	s := timestampRe.ReplaceAllString(ln, "<ts>")
	s = hexRe.ReplaceAllString(s, "<hex>")
	s = numberRe.ReplaceAllString(s, "<n>")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if len(s) > 240 {
		s = s[:240]
	}
	return s
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}
