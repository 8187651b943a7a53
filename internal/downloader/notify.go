package downloader

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/crate/internal/tasks"
)

// NotificationSink receives task lifecycle events. Implementations must
// tolerate being called from any goroutine; progress events in particular
// arrive from the subprocess stream readers of concurrently running tasks.
type NotificationSink interface {
	DownloadStarted(t tasks.Task)
	DownloadProgress(t tasks.Task, received int64)
	DownloadFinished(t tasks.Task)
	DownloadFailed(t tasks.Task, err error)
}

// SlogSink logs lifecycle events through the process logger. It is the
// default sink when no UI surface is wired.
type SlogSink struct{}

func (SlogSink) DownloadStarted(t tasks.Task) {
	slog.Info("download started", "task_id", t.ID, "url", t.URL, "name", t.Name)
}

func (SlogSink) DownloadProgress(t tasks.Task, received int64) {
	slog.Debug("download progress",
		"task_id", t.ID,
		"percent", t.Progress,
		"received", humanize.Bytes(uint64(received)),
		"line", t.LastLine)
}

func (SlogSink) DownloadFinished(t tasks.Task) {
	slog.Info("download finished", "task_id", t.ID, "name", t.Name)
}

func (SlogSink) DownloadFailed(t tasks.Task, err error) {
	slog.Error("download failed", "task_id", t.ID, "name", t.Name, "error", err)
}
