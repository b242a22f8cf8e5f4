package ingest

import (
	"regexp"
	"strings"
)

// Faculty documents mix English with Tamil and Sinhala, so the keep-list
// covers both Unicode blocks alongside word characters and punctuation.
var (
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	newlineRun   = regexp.MustCompile(`\n\s*\n\s*\n+`)
	disallowed   = regexp.MustCompile(`[^\w\s.,!?;:()\-\x{0B80}-\x{0BFF}\x{0D80}-\x{0DFF}]`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// CleanOptions controls optional cleaning steps.
type CleanOptions struct {
	RemoveURLs   bool
	RemoveEmails bool
}

// Clean normalizes document text before chunking: control and symbol noise
// is stripped, whitespace runs collapse to single spaces, and blank-line
// runs collapse to paragraph breaks.
func Clean(text string, opts CleanOptions) string {
	if text == "" {
		return ""
	}

	if opts.RemoveURLs {
		text = urlPattern.ReplaceAllString(text, "")
	}
	if opts.RemoveEmails {
		text = emailPattern.ReplaceAllString(text, "")
	}

	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	text = disallowed.ReplaceAllString(text, "")

	// Collapsing can leave stray spaces before line breaks.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
