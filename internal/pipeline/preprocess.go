package pipeline

import (
	"regexp"
	"strings"
)

// normalizePattern pairs a compiled regex with the semantic placeholder
// used in normalize_log; normalize_log_template applies the same regexes
// with the <*> wildcard instead.
// Order matters: more specific patterns must run before the numeric ones.
type normalizePattern struct {
	re          *regexp.Regexp
	placeholder string
}

var normalizePatterns = []normalizePattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "<DATE>"},                                        // 2025-05-08
	{regexp.MustCompile(`\d{2}-\d{2}-\d{2}`), "<DATE>"},                                         // 05-08-25
	{regexp.MustCompile(`\d{2}/[a-z]{3}/\d{4}`), "<DATE>"},                                      // 08/May/2025
	{regexp.MustCompile(`\d{2}:\d{2}:\d{2}`), "<TIME>"},                                         // 12:34:56
	{regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`), "<IP>"},                            // IP address
	{regexp.MustCompile(`[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`), "<ID>"}, // UUID
	{regexp.MustCompile(`\b[a-z0-9._-]*mesos[-_]slave[-_]*\d+\b`), "<HOST>"},                     // mesos-slave-XX
	{regexp.MustCompile(`\b[a-z0-9._-]*node[-_]*\d+\b`), "<HOST>"},                               // node-123
	{regexp.MustCompile(`/(?:[\w.-]+/)*[\w.-]+`), "<PATH>"},                                      // Unix-style paths
	{regexp.MustCompile(`\d+\.\d+`), "<NUM>"},                                                    // Decimal numbers
	{regexp.MustCompile(`\d+`), "<NUM>"},                                                         // Integers
}

// normalizeLog lowercases text and replaces recognized tokens with
// semantic placeholders, in pattern order.
func normalizeLog(text string) string {
	out := strings.ToLower(text)
	for _, p := range normalizePatterns {
		out = p.re.ReplaceAllString(out, p.placeholder)
	}
	return out
}

// normalizeLogTemplate is identical to normalizeLog except every match
// collapses to the single wildcard token, for comparing a synthesized
// template against existing catalog entries.
func normalizeLogTemplate(text string) string {
	out := strings.ToLower(text)
	for _, p := range normalizePatterns {
		out = p.re.ReplaceAllString(out, "<*>")
	}
	return out
}

var wildcardRe = regexp.MustCompile(`(?i)<\*>`)

// normalizeTemplate collapses the <*> wildcard to a bare * for
// case-insensitive comparison purposes.
func normalizeTemplate(t string) string {
	return strings.TrimSpace(wildcardRe.ReplaceAllString(t, "*"))
}
