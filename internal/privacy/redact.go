// Package privacy masks caller PII before it leaves the call path. Spoken
// utterances reach the live monitor feed and the process log; neither needs
// raw phone numbers, emails, card digits or national id numbers.
package privacy

import "regexp"

type rule struct {
	pattern *regexp.Regexp
	mask    string
}

// Rule order matters: card digits first so a 16-digit run is never
// classified as a phone number, national ids before phones for the same
// reason.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	// Argentine DNI as callers dictate it: 7-8 digits, optionally dotted.
	{regexp.MustCompile(`\b\d{1,2}\.\d{3}\.\d{3}\b|\b\d{7,8}\b`), "[REDACTED_DNI]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// Redact masks common high-risk PII patterns in transcribed speech.
func Redact(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.mask)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
