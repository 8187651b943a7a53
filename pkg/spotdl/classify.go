package spotdl

import "strings"

// ErrorKind identifies a recognized failure pattern in spotdl output.
type ErrorKind int

const (
	ErrSongNotFound ErrorKind = iota
	ErrUpstreamExtractor
	ErrTransport
	ErrTimeout
	ErrInvalidArgument
	ErrExplicitSkipped
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSongNotFound:
		return "song_not_found"
	case ErrUpstreamExtractor:
		return "upstream_extractor"
	case ErrTransport:
		return "transport"
	case ErrTimeout:
		return "timeout"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrExplicitSkipped:
		return "explicit_skipped"
	default:
		return "unknown"
	}
}

// ClassifiedError is a failure recognized by its marker substring in the
// subprocess output. Message is user-facing and includes a remediation.
type ClassifiedError struct {
	Kind    ErrorKind
	Marker  string
	Message string
}

func (e *ClassifiedError) Error() string { return e.Message }

// markerRules is the ordered classification table. The first rule whose
// marker appears anywhere in the filtered output wins, in this declaration
// order, even when several markers are present. Keep the table explicit so
// precedence stays auditable.
var markerRules = []ClassifiedError{
	{ErrSongNotFound, "LookupError",
		"A LookupError occurred: the song wasn't found. Try another audio provider, or disable the 'Don't filter results' and 'Only verified results' options."},
	{ErrUpstreamExtractor, "YT-DLP",
		"yt-dlp failed while downloading the song. Please report this issue upstream."},
	{ErrTransport, "HTTPError",
		"An HTTPError occurred. Try changing providers."},
	{ErrTimeout, "ReadTimeout",
		"A ReadTimeout occurred. Try changing providers."},
	{ErrInvalidArgument, "ValueError",
		"A ValueError occurred. Try changing providers."},
	{ErrExplicitSkipped, "Skipping explicit song",
		"An explicit song has been skipped. Disable 'Skip explicit songs' to download it."},
}

// FilterOutput strips transient progress noise from raw spotdl output:
// lines containing an ellipsis are dropped entirely, then exact duplicate
// lines collapse to their first occurrence. Relative order of surviving
// lines is preserved.
func FilterOutput(raw string) string {
	lines := strings.Split(raw, "\n")
	seen := make(map[string]struct{}, len(lines))
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, "…") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Classify inspects the accumulated subprocess output and returns the first
// matching failure from the marker table, or nil when the output carries no
// recognized failure and the download should be finalized.
func Classify(raw string) *ClassifiedError {
	filtered := FilterOutput(raw)
	for i := range markerRules {
		if strings.Contains(filtered, markerRules[i].Marker) {
			rule := markerRules[i]
			return &rule
		}
	}
	return nil
}
