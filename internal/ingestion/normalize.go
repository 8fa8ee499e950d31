package ingestion

import (
	"regexp"
	"strings"
)

// nonNewlineWhitespace matches runs of whitespace that contain no newline,
// including tabs, carriage returns, and exotic Unicode spaces.
var nonNewlineWhitespace = regexp.MustCompile(`[^\S\n]+`)

// excessNewlines matches three or more consecutive newlines.
var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Normalize canonicalizes extracted text for embedding: null bytes are
// removed, runs of non-newline whitespace collapse to a single space, three
// or more consecutive newlines collapse to exactly two (preserving paragraph
// boundaries), and leading/trailing whitespace is trimmed.
//
// Normalize is total and idempotent: it never fails, and
// Normalize(Normalize(s)) == Normalize(s) for every input.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\x00", "")
	text = nonNewlineWhitespace.ReplaceAllString(text, " ")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
