package downloader

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/crate/internal/history"
	"thirdcoast.systems/crate/internal/tasks"
	"thirdcoast.systems/crate/pkg/cookies"
	"thirdcoast.systems/crate/pkg/spotdl"
)

type fakeStore struct {
	mu         sync.Mutex
	entries    []history.Entry
	cookieRows []cookies.Cookie
	cookiesErr error
	insertErr  error
}

func (s *fakeStore) InsertEntry(ctx context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeStore) Cookies(ctx context.Context) ([]cookies.Cookie, error) {
	if s.cookiesErr != nil {
		return nil, s.cookiesErr
	}
	return s.cookieRows, nil
}

type fakeMetadata struct {
	songs []spotdl.SongInfo
	err   error
}

func (m fakeMetadata) SongsFromURL(ctx context.Context, url string) ([]spotdl.SongInfo, error) {
	return m.songs, m.err
}

type fakeSink struct {
	mu       sync.Mutex
	started  int
	finished int
	failed   []error
}

func (s *fakeSink) DownloadStarted(t tasks.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
}

func (s *fakeSink) DownloadProgress(t tasks.Task, received int64) {}

func (s *fakeSink) DownloadFinished(t tasks.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
}

func (s *fakeSink) DownloadFailed(t tasks.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, err)
}

type fakeRunner struct {
	output        string
	err           error
	progressLines []string

	gotArgs []string
	gotJar  string
	cancel  context.CancelFunc
}

func (r *fakeRunner) Download(ctx context.Context, args []string, onProgress spotdl.ProgressFunc) (string, error) {
	r.gotArgs = args
	for i, line := range r.progressLines {
		if onProgress != nil {
			onProgress(float64(i+1)*10, int64(len(line)), line)
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	return r.output, r.err
}

const testURL = "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

func testSong(url string) spotdl.SongInfo {
	return spotdl.SongInfo{
		SongID:   "4uLU6hMCjMI75M1A2tKUQC",
		Name:     "Song Title",
		Artist:   "Artist",
		URL:      url,
		Duration: 215.4,
		CoverURL: "https://i.scdn.co/image/abc",
	}
}

type harness struct {
	dl       *Downloader
	store    *fakeStore
	sink     *fakeSink
	runner   *fakeRunner
	settings *viper.Viper
	dir      string
}

func newHarness(t *testing.T, songs ...spotdl.SongInfo) *harness {
	t.Helper()
	if len(songs) == 0 {
		songs = []spotdl.SongInfo{testSong(testURL)}
	}

	dir := t.TempDir()
	settings := viper.New()
	RegisterDefaults(settings)

	store := &fakeStore{}
	sink := &fakeSink{}
	fr := &fakeRunner{output: "Downloaded \"Artist - Song Title\""}

	dl := New(tasks.NewRegistry(), store, fakeMetadata{songs: songs}, sink, settings, dir, "spotdl")
	dl.newClient = func(cookieJar string) runner {
		fr.gotJar = cookieJar
		return fr
	}

	return &harness{dl: dl, store: store, sink: sink, runner: fr, settings: settings, dir: dir}
}

// placeSongFile drops a file in the download dir that the post-download scan
// will attribute to the test song.
func placeSongFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "Artist - Song Title.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestDownload_Success(t *testing.T) {
	h := newHarness(t)
	placed := placeSongFile(t, h.dir)

	h.runner.progressLines = []string{"Processing query…", "Downloading: 50%", "Downloaded \"Artist - Song Title\""}

	paths, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Equal(t, []string{placed}, paths)

	task, ok := h.dl.Registry().Get(tasks.ID(testURL))
	require.True(t, ok)
	require.Equal(t, tasks.StateSucceeded, task.State)
	require.Equal(t, 100.0, task.Progress)
	require.Equal(t, "Artist - Song Title", task.Name)

	require.Len(t, h.store.entries, 1)
	e := h.store.entries[0]
	require.Equal(t, history.ChecksumID("Song Title", placed), e.ID)
	require.Equal(t, "Song Title", e.SongName)
	require.Equal(t, "Artist", e.SongAuthor)
	require.Equal(t, placed, e.SongPath)
	require.Equal(t, history.Extractor, e.Extractor)

	require.Equal(t, 1, h.sink.started)
	require.Equal(t, 1, h.sink.finished)
	require.Empty(t, h.sink.failed)
}

func TestDownload_EmptyURL(t *testing.T) {
	h := newHarness(t)

	_, err := h.dl.Download(context.Background(), "   ", false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, h.dl.Registry().List())
}

func TestDownload_MetadataFailure(t *testing.T) {
	h := newHarness(t)
	h.dl.metadata = fakeMetadata{err: errors.New("lookup failed")}

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.Error(t, err)
	// The task never started, so nothing lingers in the registry.
	require.Empty(t, h.dl.Registry().List())
}

func TestDownload_RejectsDuplicateURL(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dl.Registry().Start(tasks.ID(testURL), testURL, "Song"))

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.ErrorIs(t, err, tasks.ErrAlreadyRunning)
}

func TestDownload_InvalidCredentialPrefs(t *testing.T) {
	h := newHarness(t)
	h.settings.Set("use_spotify_credentials", true)

	_, err := h.dl.Download(context.Background(), testURL, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	task, ok := h.dl.Registry().Get(tasks.ID(testURL))
	require.True(t, ok)
	require.Equal(t, tasks.StateFailed, task.State)
	require.Len(t, h.sink.failed, 1)
	require.Empty(t, h.store.entries)
}

func TestDownload_PatternedFailure(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.runner.output = "LookupError: No results found for song"

	_, err := h.dl.Download(context.Background(), testURL, false)
	var cerr *spotdl.ClassifiedError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, spotdl.ErrSongNotFound, cerr.Kind)

	task, _ := h.dl.Registry().Get(tasks.ID(testURL))
	require.Equal(t, tasks.StateFailed, task.State)
	require.Equal(t, cerr.Message, task.Error)
	// Finalization never runs on a classified failure.
	require.Empty(t, h.store.entries)
}

func TestDownload_ExplicitSkipped(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.runner.output = "Skipping explicit song: Artist - Song Title"

	_, err := h.dl.Download(context.Background(), testURL, false)
	var cerr *spotdl.ClassifiedError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, spotdl.ErrExplicitSkipped, cerr.Kind)
	require.Empty(t, h.store.entries)
}

func TestDownload_UnclassifiedProcessFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.output = "something exploded"
	h.runner.err = errors.New("exit status 1")

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.ErrorIs(t, err, h.runner.err)

	task, _ := h.dl.Registry().Get(tasks.ID(testURL))
	require.Equal(t, tasks.StateFailed, task.State)
	require.Equal(t, "download failed", task.Error)
}

func TestDownload_MissingFileErrorStillFinalizes(t *testing.T) {
	h := newHarness(t)
	placed := placeSongFile(t, h.dir)
	// The production shape: ExecError printing only the command line, with
	// the ENOENT buried in its cause.
	h.runner.err = &spotdl.ExecError{
		Cmd:   "spotdl",
		Args:  []string{"download", testURL},
		Cause: &exec.Error{Name: "spotdl", Err: syscall.ENOENT},
	}
	require.NotContains(t, h.runner.err.Error(), "no such file or directory")

	paths, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Equal(t, []string{placed}, paths)

	task, _ := h.dl.Registry().Get(tasks.ID(testURL))
	require.Equal(t, tasks.StateSucceeded, task.State)
	require.Len(t, h.store.entries, 1)
}

func TestDownload_MissingExecutableStillFinalizes(t *testing.T) {
	h := newHarness(t)
	placed := placeSongFile(t, h.dir)

	// Drive a real client at a path that does not exist; the invocation
	// failure must route into finalization, not surface as an error.
	missing := filepath.Join(t.TempDir(), "no-such-spotdl")
	h.dl.newClient = func(cookieJar string) runner {
		c := spotdl.New()
		c.Path = missing
		return c
	}

	paths, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Equal(t, []string{placed}, paths)
	require.Len(t, h.store.entries, 1)
}

func TestDownload_ExecErrorWithOtherCauseFails(t *testing.T) {
	h := newHarness(t)
	h.runner.err = &spotdl.ExecError{
		Cmd:      "spotdl",
		Args:     []string{"download", testURL},
		ExitCode: 1,
		Cause:    errors.New("exit status 1"),
	}

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.ErrorIs(t, err, h.runner.err)

	task, _ := h.dl.Registry().Get(tasks.ID(testURL))
	require.Equal(t, tasks.StateFailed, task.State)
}

func TestDownload_FinalizeFailureFailsTask(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.store.insertErr = errors.New("db down")

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.Error(t, err)

	// A task never reads Succeeded unless its history actually landed.
	task, ok := h.dl.Registry().Get(tasks.ID(testURL))
	require.True(t, ok)
	require.Equal(t, tasks.StateFailed, task.State)
	require.Len(t, h.sink.failed, 1)
	require.Zero(t, h.sink.finished)
}

func TestDownload_CanceledIsSilent(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)

	ctx, cancel := context.WithCancel(context.Background())
	h.runner.cancel = cancel
	h.runner.err = errors.New("signal: killed")

	paths, err := h.dl.Download(ctx, testURL, false)
	require.NoError(t, err)
	require.Nil(t, paths)

	// The task vanishes and no failure is reported anywhere.
	_, ok := h.dl.Registry().Get(tasks.ID(testURL))
	require.False(t, ok)
	require.Empty(t, h.sink.failed)
	require.Empty(t, h.store.entries)
}

func TestDownload_IncognitoKeepsNoHistory(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.settings.Set("incognito", true)

	paths, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Empty(t, paths)
	require.Empty(t, h.store.entries)

	task, _ := h.dl.Registry().Get(tasks.ID(testURL))
	require.Equal(t, tasks.StateSucceeded, task.State)
}

func TestDownload_ExternalTargetMovesStagedFiles(t *testing.T) {
	h := newHarness(t)
	target := filepath.Join(t.TempDir(), "library")
	h.settings.Set("external_target", true)
	h.settings.Set("external_uri", target)

	song := testSong(testURL)
	staging := filepath.Join(h.dir, ".staging", song.SongID)
	require.NoError(t, os.MkdirAll(staging, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "Artist - Song Title.mp3"), []byte("audio"), 0o644))

	paths, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(target, "Artist - Song Title.mp3")}, paths)

	_, statErr := os.Stat(paths[0])
	require.NoError(t, statErr)
	require.Len(t, h.store.entries, 1)
	require.Equal(t, paths[0], h.store.entries[0].SongPath)
}

func TestDownload_AttachesCookieJar(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.settings.Set("use_cookies", true)
	h.store.cookieRows = []cookies.Cookie{{Domain: "example.com", Name: "sid", Value: "abc", Path: "/"}}

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Contains(t, h.runner.gotJar, ".example.com")
	require.Contains(t, h.runner.gotArgs, "--cookie-file")
}

func TestDownload_CookieJarFallback(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.settings.Set("use_cookies", true)
	h.store.cookiesErr = errors.New("db down")

	_, err := h.dl.Download(context.Background(), testURL, false)
	require.NoError(t, err)
	require.Equal(t, cookies.Header, h.runner.gotJar)
}

func TestDownload_ParallelPassesThreads(t *testing.T) {
	h := newHarness(t)
	placeSongFile(t, h.dir)
	h.settings.Set("threads", 3)

	_, err := h.dl.Download(context.Background(), testURL, true)
	require.NoError(t, err)

	joined := strings.Join(h.runner.gotArgs, " ")
	require.Contains(t, joined, "--threads 3")
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Artist - Song", displayName(spotdl.SongInfo{Name: "Song", Artist: "Artist"}))
	require.Equal(t, "Song", displayName(spotdl.SongInfo{Name: "Song"}))
	require.Equal(t, "https://u", displayName(spotdl.SongInfo{URL: "https://u"}))
}
