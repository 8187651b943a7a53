// Package filename normalizes song titles and produced file names so they
// can be compared and used as filesystem-safe slugs.
package filename

import (
	"regexp"
	"strings"
)

// invalidCharsRe matches characters not safe for filenames across all major OSes.
var invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// multiDash collapses runs of dashes/underscores.
var multiDash = regexp.MustCompile(`[-_]{2,}`)

// Sanitize converts a song title or file name into a comparable,
// filesystem-safe slug: invalid characters and whitespace become dashes,
// dash runs collapse, and leading/trailing dashes and dots are stripped.
// The output is truncated to maxLen bytes (0 means the default of 120).
// Titles that differ only in punctuation sanitize to the same slug, which
// is what the post-download file scan relies on.
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 120
	}

	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}

	s = invalidCharsRe.ReplaceAllString(s, "-")

	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return '-'
		}
		return r
	}, s)

	s = multiDash.ReplaceAllString(s, "-")

	// Avoid hidden files and trailing dots on Windows.
	s = strings.Trim(s, "-.")

	if len(s) > maxLen {
		s = s[:maxLen]
		s = strings.TrimRight(s, "-.")
	}

	return s
}
