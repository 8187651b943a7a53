package downloader

import (
	"github.com/spf13/viper"

	"thirdcoast.systems/crate/pkg/spotdl"
)

// Settings keys in the process-wide viper store. The store is the single
// mutable source of download preferences; everything downstream works from
// an immutable snapshot taken once per invocation.
const (
	keyDownloadPlaylist  = "download_playlist"
	keyCustomPath        = "custom_path"
	keyMaxFileSize       = "max_file_size"
	keyUseCookies        = "use_cookies"
	keyAudioFormat       = "audio_format"
	keyAudioQuality      = "audio_quality"
	keyPreserveOriginal  = "preserve_original_audio"
	keyUseSpotifyCreds   = "use_spotify_credentials"
	keySpotifyClientID   = "spotify_client_id"
	keySpotifySecret     = "spotify_client_secret"
	keyUseYTMetadata     = "use_yt_metadata"
	keyUseCaching        = "use_caching"
	keyDownloadLyrics    = "download_lyrics"
	keyDontFilter        = "dont_filter_results"
	keyIncognito         = "incognito"
	keyExternalTarget    = "external_target"
	keyExternalURI       = "external_uri"
	keyExtraDirectory    = "extra_directory"
	keySplitByMainArtist = "split_by_main_artist"
	keySplitByPlaylist   = "split_by_playlist"
	keyThreads           = "threads"
	keyLyricProviders    = "lyric_providers"
	keyAudioProviders    = "audio_providers"
	keySponsorBlock      = "sponsor_block"
	keyOnlyVerified      = "only_verified_results"
	keySkipExplicit      = "skip_explicit"
	keyGenerateLRC       = "generate_lrc"
	keySkipAlbumArt      = "skip_album_art"
	keyOutputFormat      = "output_format"
)

// RegisterDefaults installs the preference defaults into v.
func RegisterDefaults(v *viper.Viper) {
	v.SetDefault(keyUseCaching, true)
	v.SetDefault(keyThreads, 1)
	v.SetDefault(keyAudioFormat, int(spotdl.FormatMP3))
	v.SetDefault(keyAudioQuality, int(spotdl.QualityAuto))
	v.SetDefault(keyLyricProviders, []string{"Synced"})
	v.SetDefault(keyAudioProviders, []string{"YouTube Music"})
}

// CaptureSnapshot reads every preference out of v exactly once and freezes
// the result. A task never observes a preference change made after its
// snapshot was captured.
func CaptureSnapshot(v *viper.Viper, downloadDir string) spotdl.Preferences {
	return spotdl.Preferences{
		DownloadPlaylist: v.GetBool(keyDownloadPlaylist),
		CustomPath:       v.GetBool(keyCustomPath),
		MaxFileSize:      v.GetString(keyMaxFileSize),

		DownloadDir:  downloadDir,
		OutputFormat: v.GetString(keyOutputFormat),

		UseCookies: v.GetBool(keyUseCookies),

		AudioFormat:           spotdl.AudioFormat(v.GetInt(keyAudioFormat)),
		AudioQuality:          spotdl.AudioQuality(v.GetInt(keyAudioQuality)),
		PreserveOriginalAudio: v.GetBool(keyPreserveOriginal),

		UseSpotifyCredentials: v.GetBool(keyUseSpotifyCreds),
		SpotifyClientID:       v.GetString(keySpotifyClientID),
		SpotifyClientSecret:   v.GetString(keySpotifySecret),

		UseYTMetadata: v.GetBool(keyUseYTMetadata),
		UseCaching:    v.GetBool(keyUseCaching),
		DontFilter:    v.GetBool(keyDontFilter),

		DownloadLyrics: v.GetBool(keyDownloadLyrics),
		LyricProviders: v.GetStringSlice(keyLyricProviders),
		AudioProviders: v.GetStringSlice(keyAudioProviders),

		SponsorBlock:        v.GetBool(keySponsorBlock),
		OnlyVerifiedResults: v.GetBool(keyOnlyVerified),
		SkipExplicit:        v.GetBool(keySkipExplicit),
		GenerateLRC:         v.GetBool(keyGenerateLRC),
		SkipAlbumArt:        v.GetBool(keySkipAlbumArt),

		Incognito:      v.GetBool(keyIncognito),
		ExternalTarget: v.GetBool(keyExternalTarget),
		ExternalURI:    v.GetString(keyExternalURI),
		ExtraDirectory: v.GetString(keyExtraDirectory),

		SplitByMainArtist: v.GetBool(keySplitByMainArtist),
		SplitByPlaylist:   v.GetBool(keySplitByPlaylist),

		Threads: v.GetInt(keyThreads),
	}
}
