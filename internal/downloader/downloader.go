// Package downloader orchestrates spotdl downloads: it captures a
// preference snapshot, builds the command, tracks task lifecycle, classifies
// subprocess output, and finalizes results into history.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"thirdcoast.systems/crate/internal/history"
	"thirdcoast.systems/crate/internal/tasks"
	"thirdcoast.systems/crate/pkg/cookies"
	"thirdcoast.systems/crate/pkg/spotdl"
)

// ValidationError is a request rejected before the subprocess ever runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// HistoryStore is the persistence surface the orchestrator needs. Satisfied
// by *history.Store.
type HistoryStore interface {
	InsertEntry(ctx context.Context, e history.Entry) error
	Cookies(ctx context.Context) ([]cookies.Cookie, error)
}

// MetadataClient resolves a music-service URL into song metadata.
type MetadataClient interface {
	SongsFromURL(ctx context.Context, url string) ([]spotdl.SongInfo, error)
}

// runner is the slice of *spotdl.Client the orchestrator drives.
type runner interface {
	Download(ctx context.Context, args []string, onProgress spotdl.ProgressFunc) (output string, err error)
}

// SpotdlMetadata fetches metadata through the spotdl executable itself,
// used when no Spotify Web API credentials are configured.
type SpotdlMetadata struct {
	Path string
}

func (m SpotdlMetadata) SongsFromURL(ctx context.Context, url string) ([]spotdl.SongInfo, error) {
	c := spotdl.New()
	c.Path = m.Path
	return c.FetchSongs(ctx, url)
}

// Downloader drives the full download lifecycle. One Downloader serves all
// tasks; each invocation gets its own spotdl client and its own immutable
// preference snapshot.
type Downloader struct {
	registry *tasks.Registry
	store    HistoryStore
	metadata MetadataClient
	sink     NotificationSink

	settings    *viper.Viper
	downloadDir string
	spotdlPath  string

	// newClient builds the subprocess runner for one invocation, carrying
	// the cookie jar content when one is attached. Swappable in tests.
	newClient func(cookieJar string) runner
}

func New(registry *tasks.Registry, store HistoryStore, metadata MetadataClient, sink NotificationSink, settings *viper.Viper, downloadDir, spotdlPath string) *Downloader {
	if sink == nil {
		sink = SlogSink{}
	}
	d := &Downloader{
		registry:    registry,
		store:       store,
		metadata:    metadata,
		sink:        sink,
		settings:    settings,
		downloadDir: downloadDir,
		spotdlPath:  spotdlPath,
	}
	d.newClient = func(cookieJar string) runner {
		c := spotdl.New()
		c.Path = spotdlPath
		c.Cookies = cookieJar
		return c
	}
	return d
}

// Registry exposes live task state for the API layer.
func (d *Downloader) Registry() *tasks.Registry {
	return d.registry
}

// Snapshot captures the current preferences. Exposed so the API can report
// effective settings.
func (d *Downloader) Snapshot() spotdl.Preferences {
	return CaptureSnapshot(d.settings, d.downloadDir)
}

// Download runs one download task for url and blocks until the subprocess
// terminates and the results are finalized. It returns the final file paths
// placed on persistent storage (empty in incognito mode). parallel selects
// multi-task mode, which passes the configured thread count through to the
// executable.
//
// Cancellation through ctx is deliberately silent: the task is dropped from
// the registry and neither an error nor history is recorded.
func (d *Downloader) Download(ctx context.Context, url string, parallel bool) ([]string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &ValidationError{Reason: "url is required"}
	}

	snap := d.Snapshot()
	snap.Parallel = parallel

	// Resolve metadata first so the task carries a display name and
	// finalization knows what was downloaded.
	songs, err := d.metadata.SongsFromURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch song info: %w", err)
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("fetch song info: no songs resolved for %s", url)
	}

	name := displayName(songs[0])
	id := tasks.ID(url)
	if err := d.registry.Start(id, url, name); err != nil {
		return nil, err
	}

	args, err := spotdl.BuildArgs(snap, url)
	if err != nil {
		verr := &ValidationError{Reason: err.Error()}
		d.registry.Fail(id, verr.Reason)
		d.sink.DownloadFailed(d.task(id), verr)
		return nil, verr
	}

	var cookieJar string
	if snap.UseCookies && snap.CookieFile == "" {
		cookieJar = d.cookieJar(ctx)
	}
	client := d.newClient(cookieJar)

	d.sink.DownloadStarted(d.task(id))

	output, runErr := client.Download(ctx, args, func(percent float64, received int64, line string) {
		d.registry.UpdateProgress(id, percent, line)
		d.sink.DownloadProgress(d.task(id), received)
	})

	if runErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		// Cooperative cancellation is an expected termination, not a
		// failure. No error surfaces and no history is written.
		d.registry.Drop(id)
		return nil, nil
	}

	if runErr != nil && !missingFileError(runErr) {
		msg := "download failed"
		d.registry.Fail(id, msg)
		d.sink.DownloadFailed(d.task(id), runErr)
		return nil, runErr
	}
	// A "no such file or directory" invocation error falls through into the
	// finalize path on purpose, mirroring the long-standing compensation
	// for the output directory appearing mid-run.

	if cerr := spotdl.Classify(output); cerr != nil {
		d.registry.Fail(id, cerr.Message)
		d.sink.DownloadFailed(d.task(id), cerr)
		return nil, cerr
	}

	var paths []string
	for _, song := range songs {
		placed, err := d.finalize(ctx, snap, song)
		if err != nil {
			d.registry.Fail(id, "failed to finalize download")
			d.sink.DownloadFailed(d.task(id), err)
			return paths, err
		}
		paths = append(paths, placed...)
	}

	// The task transitions only after files and history are settled, so a
	// Succeeded task always reflects what was actually persisted.
	d.registry.End(id, lastLine(spotdl.FilterOutput(output)))
	d.sink.DownloadFinished(d.task(id))
	return paths, nil
}

// cookieJar renders the stored cookie rows as cookies.txt content. Best
// effort: an unavailable jar degrades to the bare header, which means an
// unauthenticated download rather than a failed one.
func (d *Downloader) cookieJar(ctx context.Context) string {
	rows, err := d.store.Cookies(ctx)
	if err != nil {
		slog.Warn("cookie jar unavailable, downloading unauthenticated", "error", err)
		return cookies.Header
	}
	return cookies.Convert(rows)
}

func (d *Downloader) task(id uuid.UUID) tasks.Task {
	t, _ := d.registry.Get(id)
	return t
}

// missingFileError reports whether the subprocess run failed because a path
// did not exist. The client wraps invocation failures in ExecError, whose
// Error() prints only the command line; the ENOENT text lives in its cause,
// so the cause chain is what gets inspected.
func missingFileError(err error) bool {
	var ee *spotdl.ExecError
	if errors.As(err, &ee) {
		err = ee.Cause
	}
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
}

func displayName(song spotdl.SongInfo) string {
	switch {
	case song.Name == "":
		return song.URL
	case song.Artist == "":
		return song.Name
	default:
		return song.Artist + " - " + song.Name
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
