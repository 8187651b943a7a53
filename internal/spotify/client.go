// Package spotify looks up song metadata through the Spotify Web API using
// app-level client-credentials auth.
package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"thirdcoast.systems/crate/pkg/spotdl"
)

// ResourceKind is the addressable Spotify entity type in a share URL.
type ResourceKind string

const (
	KindTrack    ResourceKind = "track"
	KindAlbum    ResourceKind = "album"
	KindPlaylist ResourceKind = "playlist"
)

type Client struct {
	api *spotifyapi.Client
}

// New authenticates with the client-credentials flow and returns a metadata
// client. The credentials are app-level; no user consent is involved.
func New(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify: client id and secret are required")
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := conf.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify: token request: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &Client{api: spotifyapi.New(httpClient)}, nil
}

// ParseResourceURL extracts the entity kind and id from an
// open.spotify.com share URL.
func ParseResourceURL(raw string) (ResourceKind, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("spotify: parse url: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "open.spotify.com") {
		return "", "", fmt.Errorf("spotify: not an open.spotify.com url: %s", raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Localized share links carry a leading intl-xx segment.
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) < 2 || segments[1] == "" {
		return "", "", fmt.Errorf("spotify: no resource id in url: %s", raw)
	}

	switch ResourceKind(segments[0]) {
	case KindTrack, KindAlbum, KindPlaylist:
		return ResourceKind(segments[0]), segments[1], nil
	default:
		return "", "", fmt.Errorf("spotify: unsupported resource type %q", segments[0])
	}
}

// SongsFromURL resolves a share URL into song metadata. Albums and
// playlists yield one entry per track with the collection name attached.
func (c *Client) SongsFromURL(ctx context.Context, raw string) ([]spotdl.SongInfo, error) {
	kind, id, err := ParseResourceURL(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindTrack:
		track, err := c.api.GetTrack(ctx, spotifyapi.ID(id))
		if err != nil {
			return nil, fmt.Errorf("spotify: get track: %w", err)
		}
		song := fullTrackInfo(track)
		song.Genres = c.artistGenres(ctx, track.Artists)
		return []spotdl.SongInfo{song}, nil

	case KindAlbum:
		album, err := c.api.GetAlbum(ctx, spotifyapi.ID(id))
		if err != nil {
			return nil, fmt.Errorf("spotify: get album: %w", err)
		}
		songs := make([]spotdl.SongInfo, 0, len(album.Tracks.Tracks))
		for _, t := range album.Tracks.Tracks {
			songs = append(songs, spotdl.SongInfo{
				SongID:      string(t.ID),
				Name:        t.Name,
				Artist:      joinArtists(t.Artists),
				AlbumName:   album.Name,
				AlbumArtist: joinArtists(album.Artists),
				Genres:      album.Genres,
				Year:        releaseYear(album.ReleaseDate),
				Duration:    float64(t.Duration) / 1000,
				URL:         t.ExternalURLs["spotify"],
				CoverURL:    firstImage(album.Images),
				ListName:    album.Name,
			})
		}
		return songs, nil

	case KindPlaylist:
		playlist, err := c.api.GetPlaylist(ctx, spotifyapi.ID(id))
		if err != nil {
			return nil, fmt.Errorf("spotify: get playlist: %w", err)
		}
		var songs []spotdl.SongInfo
		for _, item := range playlist.Tracks.Tracks {
			song := fullTrackInfo(&item.Track)
			song.ListName = playlist.Name
			songs = append(songs, song)
		}
		return songs, nil
	}

	return nil, fmt.Errorf("spotify: unsupported resource kind %q", kind)
}

func fullTrackInfo(t *spotifyapi.FullTrack) spotdl.SongInfo {
	return spotdl.SongInfo{
		SongID:      string(t.ID),
		Name:        t.Name,
		Artist:      joinArtists(t.Artists),
		AlbumName:   t.Album.Name,
		AlbumArtist: joinArtists(t.Album.Artists),
		Year:        releaseYear(t.Album.ReleaseDate),
		Duration:    float64(t.Duration) / 1000,
		URL:         t.ExternalURLs["spotify"],
		CoverURL:    firstImage(t.Album.Images),
	}
}

// artistGenres fetches the primary artist's genres. Best effort: track
// objects don't carry genres themselves.
func (c *Client) artistGenres(ctx context.Context, artists []spotifyapi.SimpleArtist) []string {
	if len(artists) == 0 {
		return nil
	}
	artist, err := c.api.GetArtist(ctx, artists[0].ID)
	if err != nil {
		slog.Warn("spotify: artist genre lookup failed", "artist", artists[0].Name, "error", err)
		return nil
	}
	return artist.Genres
}

func joinArtists(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func releaseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

func firstImage(images []spotifyapi.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
