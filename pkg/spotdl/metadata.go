package spotdl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SongInfo models the metadata spotdl reports for a song. It intentionally
// covers only the fields the orchestrator consumes; the save-file JSON
// carries more.
type SongInfo struct {
	SongID      string   `json:"song_id"`
	Name        string   `json:"name"`
	Artist      string   `json:"artist"`
	AlbumName   string   `json:"album_name"`
	AlbumArtist string   `json:"album_artist"`
	Genres      []string `json:"genres"`
	Year        int      `json:"year"`
	Duration    float64  `json:"duration"`
	URL         string   `json:"url"`
	CoverURL    string   `json:"cover_url"`
	ListName    string   `json:"list_name"`
}

// FetchSongs runs spotdl in "metadata only" mode (`save --save-file`) and
// parses the resulting JSON array. Playlists and albums yield one entry per
// track.
func (c *Client) FetchSongs(ctx context.Context, url string, extraArgs ...string) ([]SongInfo, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("spotdl: url is required")
	}

	dir, err := os.MkdirTemp("", "spotdl-meta-*")
	if err != nil {
		return nil, fmt.Errorf("spotdl: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// spotdl requires the .spotdl suffix on save files.
	saveFile := filepath.Join(dir, "songs.spotdl")

	args := []string{"save", url, "--save-file", saveFile}
	args = append(args, extraArgs...)

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return nil, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}

	raw, err := c.readSaveFile(saveFile, stdout)
	if err != nil {
		return nil, err
	}

	var songs []SongInfo
	if err := json.Unmarshal(raw, &songs); err != nil {
		return nil, fmt.Errorf("spotdl: parse save file: %w", err)
	}
	return songs, nil
}

// readSaveFile prefers the written save file but falls back to stdout, which
// is how the execFn test seam injects metadata without touching disk.
func (c *Client) readSaveFile(path string, stdout []byte) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil {
		return b, nil
	}
	raw := []byte(strings.TrimSpace(string(stdout)))
	if len(raw) == 0 {
		return nil, fmt.Errorf("spotdl: no metadata produced")
	}
	return raw, nil
}
