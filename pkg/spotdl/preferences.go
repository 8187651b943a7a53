package spotdl

// AudioFormat selects the container/codec spotdl should produce.
// The zero value is MP3. FormatDefault emits no --format flag and leaves the
// choice to the executable.
type AudioFormat int

const (
	FormatMP3 AudioFormat = iota
	FormatFLAC
	FormatOGG
	FormatOpus
	FormatM4A
	FormatM4AALAC
	FormatDefault
)

// Flag returns the --format value for this format. ok is false for
// FormatDefault (and anything out of range), meaning no flag is emitted.
func (f AudioFormat) Flag() (value string, ok bool) {
	switch f {
	case FormatMP3:
		return "mp3", true
	case FormatFLAC:
		return "flac", true
	case FormatOGG:
		return "ogg", true
	case FormatOpus:
		return "opus", true
	case FormatM4A, FormatM4AALAC:
		return "m4a", true
	default:
		return "", false
	}
}

// Extension returns the file extension produced by this format, or "" when
// the format has no fixed extension. Note the ALAC variant writes wav
// intermediates, so its extension differs from its container flag.
func (f AudioFormat) Extension() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatFLAC:
		return "flac"
	case FormatOGG:
		return "ogg"
	case FormatOpus:
		return "opus"
	case FormatM4A:
		return "m4a"
	case FormatM4AALAC:
		return "wav"
	default:
		return ""
	}
}

// AudioQuality is an index into the fixed bitrate ladder.
// 0 = auto, 1..16 = 8k..320k, 17 = disable.
type AudioQuality int

const (
	QualityAuto    AudioQuality = 0
	QualityDisable AudioQuality = 17
)

var bitrateLadder = [...]string{
	"auto",
	"8k", "16k", "24k", "32k", "40k", "48k", "64k", "80k",
	"96k", "112k", "128k", "160k", "192k", "224k", "256k", "320k",
	"disable",
}

// Bitrate returns the --bitrate value for this quality index.
// Out-of-range indices fall back to "auto".
func (q AudioQuality) Bitrate() string {
	if q < 0 || int(q) >= len(bitrateLadder) {
		return "auto"
	}
	return bitrateLadder[q]
}

// Recognized multi-select values. Anything else in the preference strings is
// silently ignored by the request builder.
var lyricProviderTokens = []struct{ name, token string }{
	{"Synced", "synced"},
	{"Genius", "genius"},
	{"Musixmatch", "musixmatch"},
	{"AZLyrics", "azlyrics"},
}

var audioProviderTokens = []struct{ name, token string }{
	{"YouTube", "youtube"},
	{"YouTube Music", "youtube-music"},
	{"Soundcloud", "soundcloud"},
	{"Bandcamp", "bandcamp"},
	{"Piped", "piped"},
}

// Preferences is an immutable snapshot of the download settings, captured
// once per invocation. BuildArgs is a pure function of this value and the
// URL; nothing here is read from process-wide state after capture.
type Preferences struct {
	DownloadPlaylist bool
	CustomPath       bool
	MaxFileSize      string

	// DownloadDir is the base output directory. OutputFormat, when
	// non-empty, is appended as a template suffix ("{artist}/{title}" etc.).
	DownloadDir  string
	OutputFormat string

	// CookieFile is the path of the materialized Netscape cookie file.
	// Only consulted when UseCookies is set.
	UseCookies bool
	CookieFile string

	AudioFormat           AudioFormat
	AudioQuality          AudioQuality
	PreserveOriginalAudio bool

	UseSpotifyCredentials bool
	SpotifyClientID       string
	SpotifyClientSecret   string

	UseYTMetadata bool
	UseCaching    bool
	DontFilter    bool

	DownloadLyrics bool
	LyricProviders []string
	AudioProviders []string

	SponsorBlock        bool
	OnlyVerifiedResults bool
	SkipExplicit        bool
	GenerateLRC         bool
	SkipAlbumArt        bool

	Incognito      bool
	ExternalTarget bool
	ExternalURI    string
	ExtraDirectory string

	SplitByMainArtist bool
	SplitByPlaylist   bool

	// Parallel enables multi-task mode; only then is the thread count
	// passed to the executable.
	Parallel bool
	Threads  int
}

func containsAny(values []string, name string) bool {
	for _, v := range values {
		if v == name {
			return true
		}
	}
	return false
}
