package spotdl

import (
	"fmt"
	"strconv"
	"strings"
)

// OutputPath returns the output template passed to spotdl: the base download
// directory, plus "/" and the output-format template when one is configured.
func OutputPath(p Preferences) string {
	var b strings.Builder
	b.WriteString(p.DownloadDir)
	if p.OutputFormat != "" {
		b.WriteString("/")
		b.WriteString(p.OutputFormat)
	}
	return b.String()
}

// BuildArgs translates a preference snapshot and a URL into the ordered
// argument list for the spotdl executable. It is pure and deterministic:
// the same snapshot and URL always produce the same tokens. Option order is
// fixed because the executable treats some options positionally (provider
// and lyric tokens trail their flag) and some pairs are mutually exclusive.
func BuildArgs(p Preferences, url string) ([]string, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("spotdl: url is required")
	}
	if p.UseSpotifyCredentials && (p.SpotifyClientID == "" || p.SpotifyClientSecret == "") {
		return nil, fmt.Errorf("spotdl: custom credentials enabled but client id or secret is empty")
	}

	args := []string{"download", url}

	args = append(args, "--output", OutputPath(p))

	if p.UseCookies {
		args = append(args, "--cookie-file", p.CookieFile)
	}

	if !p.UseCaching {
		args = append(args, "--no-cache")
	}

	if p.UseYTMetadata {
		args = append(args, "--ytm-data")
	}

	if p.DontFilter {
		args = append(args, "--dont-filter-results")
	}

	if p.DownloadLyrics && len(p.LyricProviders) > 0 {
		args = append(args, "--lyrics")
		for _, lp := range lyricProviderTokens {
			if containsAny(p.LyricProviders, lp.name) {
				args = append(args, lp.token)
			}
		}
	}

	if p.SponsorBlock {
		args = append(args, "--sponsor-block")
	}
	if p.OnlyVerifiedResults {
		args = append(args, "--only-verified-results")
	}
	if p.SkipExplicit {
		args = append(args, "--skip-explicit")
	}
	if p.GenerateLRC {
		args = append(args, "--generate-lrc")
	}
	if p.SkipAlbumArt {
		args = append(args, "--skip-album-art")
	}

	// Bitrate and format may coexist, but preserving the original audio
	// forces the bitrate off regardless of the configured quality index.
	if p.PreserveOriginalAudio {
		args = append(args, "--bitrate", "disable")
	} else {
		args = append(args, "--bitrate", p.AudioQuality.Bitrate())
	}
	if v, ok := p.AudioFormat.Flag(); ok {
		args = append(args, "--format", v)
	}

	if len(p.AudioProviders) > 0 {
		args = append(args, "--audio")
		for _, ap := range audioProviderTokens {
			if containsAny(p.AudioProviders, ap.name) {
				args = append(args, ap.token)
			}
		}
	}

	if p.Parallel {
		args = append(args, "--threads", strconv.Itoa(p.Threads))
	}

	if p.UseSpotifyCredentials {
		args = append(args, "--client-id", p.SpotifyClientID, "--client-secret", p.SpotifyClientSecret)
	}

	return args, nil
}
