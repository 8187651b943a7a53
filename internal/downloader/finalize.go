package downloader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"thirdcoast.systems/crate/internal/history"
	"thirdcoast.systems/crate/pkg/spotdl"
	"thirdcoast.systems/crate/pkg/utils/filename"
	"thirdcoast.systems/crate/pkg/utils/pathtemplate"
)

// finalize places the downloaded files on their persistent location and
// records history. The three branches are mutually exclusive and checked in
// priority order: incognito keeps nothing, an external target gets staged
// files moved over, and the default registers files in place. History is
// written if and only if files actually landed on persistent storage.
func (d *Downloader) finalize(ctx context.Context, snap spotdl.Preferences, song spotdl.SongInfo) ([]string, error) {
	resolved := pathtemplate.Resolve(spotdl.OutputPath(snap), song, snap.AudioFormat.Extension())

	switch {
	case snap.Incognito:
		return nil, nil

	case snap.ExternalTarget && snap.ExternalURI != "":
		paths, err := moveStagedFiles(d.stagingDir(song), snap.ExternalURI)
		if err != nil {
			return nil, err
		}
		return paths, d.recordEntries(ctx, song, paths)

	default:
		paths := scanSongFiles(resolved, song.Name)
		return paths, d.recordEntries(ctx, song, paths)
	}
}

// stagingDir is where external-target downloads land before the move.
func (d *Downloader) stagingDir(song spotdl.SongInfo) string {
	return filepath.Join(d.downloadDir, ".staging", song.SongID)
}

// recordEntries writes one history entry per placed file. The id derives
// from (song name, path); see history.ChecksumID for its collision caveat.
func (d *Downloader) recordEntries(ctx context.Context, song spotdl.SongInfo, paths []string) error {
	for _, p := range paths {
		entry := history.Entry{
			ID:           history.ChecksumID(song.Name, p),
			SongName:     song.Name,
			SongAuthor:   song.Artist,
			SongURL:      song.URL,
			ThumbnailURL: song.CoverURL,
			SongPath:     p,
			SongDuration: song.Duration,
			Extractor:    history.Extractor,
		}
		if err := d.store.InsertEntry(ctx, entry); err != nil {
			return fmt.Errorf("record history for %s: %w", p, err)
		}
	}
	return nil
}

// scanSongFiles walks the resolved output directory and returns the files
// belonging to title, matched on sanitized names. A missing directory or no
// matches yields an empty list: nothing placed means nothing recorded.
func scanSongFiles(dir string, title string) []string {
	want := strings.ToLower(filename.Sanitize(title, 0))
	if want == "" {
		return nil
	}

	var matches []string
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if strings.Contains(strings.ToLower(filename.Sanitize(base, 0)), want) {
			matches = append(matches, path)
		}
		return nil
	})
	sort.Strings(matches)
	return matches
}

// moveStagedFiles moves every file in the staging directory to the external
// target directory and returns the new paths.
func moveStagedFiles(stagingDir, targetDir string) ([]string, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read staging dir: %w", err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	var moved []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(stagingDir, entry.Name())
		dst := filepath.Join(targetDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return moved, fmt.Errorf("move %s: %w", entry.Name(), err)
		}
		moved = append(moved, dst)
	}
	sort.Strings(moved)
	return moved, nil
}
