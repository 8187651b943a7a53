package web

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/crate/internal/tasks"
	"thirdcoast.systems/crate/pkg/cookies"
	"thirdcoast.systems/crate/pkg/utils/format"
)

const shutdownTimeout = 10 * time.Second

type createDownloadRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Parallel bool   `json:"parallel"`
}

func (s *Webserver) handleCreateDownload(c echo.Context) error {
	var req createDownloadRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid json")
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validate.Struct(req); err != nil {
		return c.String(http.StatusBadRequest, "url is required and must be a valid url")
	}

	id := tasks.ID(req.URL)
	if t, ok := s.dl.Registry().Get(id); ok && t.State == tasks.StateRunning {
		return c.String(http.StatusConflict, "a download for this url is already running")
	}

	select {
	case s.submit <- Submission{URL: req.URL, Parallel: req.Parallel}:
	default:
		return c.String(http.StatusServiceUnavailable, "download queue is full")
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"task_id": id.String(),
		"url":     req.URL,
	})
}

type taskResponse struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	LastLine string  `json:"last_line,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func taskToResponse(t tasks.Task) taskResponse {
	return taskResponse{
		ID:       t.ID.String(),
		URL:      t.URL,
		Name:     t.Name,
		State:    t.State.String(),
		Progress: t.Progress,
		LastLine: t.LastLine,
		Error:    t.Error,
	}
}

func (s *Webserver) handleListTasks(c echo.Context) error {
	list := s.dl.Registry().List()
	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, taskToResponse(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Webserver) handleGetTask(c echo.Context) error {
	id, err := parseTaskID(c.Param("id"))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid task id")
	}
	t, ok := s.dl.Registry().Get(id)
	if !ok {
		return c.String(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, taskToResponse(t))
}

type historyResponse struct {
	ID           int64   `json:"id"`
	SongName     string  `json:"song_name"`
	SongAuthor   string  `json:"song_author"`
	SongURL      string  `json:"song_url"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	SongPath     string  `json:"song_path"`
	Duration     float64 `json:"duration"`
	DurationText string  `json:"duration_text"`
	Extractor    string  `json:"extractor"`
}

func (s *Webserver) handleListHistory(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.store.RecentEntries(c.Request().Context(), limit)
	if err != nil {
		slog.Error("failed to list history", "error", err)
		return c.String(http.StatusInternalServerError, "failed to list history")
	}

	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{
			ID:           e.ID,
			SongName:     e.SongName,
			SongAuthor:   e.SongAuthor,
			SongURL:      e.SongURL,
			ThumbnailURL: e.ThumbnailURL,
			SongPath:     e.SongPath,
			Duration:     e.SongDuration,
			DurationText: format.Duration(e.SongDuration),
			Extractor:    e.Extractor,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Webserver) handleDeleteHistory(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid history id")
	}
	if err := s.store.DeleteEntry(c.Request().Context(), id); err != nil {
		slog.Error("failed to delete history entry", "id", id, "error", err)
		return c.String(http.StatusInternalServerError, "failed to delete entry")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleGetCookies renders the stored jar as a downloadable cookies.txt.
func (s *Webserver) handleGetCookies(c echo.Context) error {
	rows, err := s.store.Cookies(c.Request().Context())
	if err != nil {
		slog.Error("failed to load cookies", "error", err)
		return c.String(http.StatusInternalServerError, "failed to load cookies")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="cookies.txt"`)
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(cookies.Convert(rows)))
}

// handlePutCookies replaces the stored jar with an uploaded cookies.txt.
func (s *Webserver) handlePutCookies(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "failed to read body")
	}
	rows := cookies.Parse(string(body))
	if len(rows) == 0 {
		return c.String(http.StatusBadRequest, "no valid cookie rows in upload")
	}
	if err := s.store.ReplaceCookies(c.Request().Context(), rows); err != nil {
		slog.Error("failed to store cookies", "error", err)
		return c.String(http.StatusInternalServerError, "failed to store cookies")
	}
	return c.JSON(http.StatusOK, map[string]int{"stored": len(rows)})
}
