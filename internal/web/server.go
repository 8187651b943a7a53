// Package web exposes the download orchestrator over an HTTP API.
package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"thirdcoast.systems/crate/internal/downloader"
	"thirdcoast.systems/crate/internal/history"
)

// Submission is one download request accepted by the API and handed to the
// worker pool.
type Submission struct {
	URL      string
	Parallel bool
}

// Webserver wires the API handlers to the orchestrator and the history
// store. Downloads are not run on the request goroutine: accepted
// submissions go to the submit channel and workers pick them up.
type Webserver struct {
	*echo.Echo
	dl       *downloader.Downloader
	store    *history.Store
	submit   chan<- Submission
	validate *validator.Validate
}

func NewWebserver(dl *downloader.Downloader, store *history.Store, submit chan<- Submission) *Webserver {
	e := echo.New()

	s := &Webserver{
		Echo:     e,
		dl:       dl,
		store:    store,
		submit:   submit,
		validate: validator.New(),
	}

	s.setupMiddleware()
	s.registerRoutes()
	return s
}

func (s *Webserver) setupMiddleware() {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("2M"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
}

func (s *Webserver) registerRoutes() {
	api := s.Group("/api")

	api.POST("/downloads", s.handleCreateDownload)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)
	api.GET("/history", s.handleListHistory)
	api.DELETE("/history/:id", s.handleDeleteHistory)
	api.GET("/cookies", s.handleGetCookies)
	api.PUT("/cookies", s.handlePutCookies)
}

// Serve blocks until ctx is canceled, then shuts the listener down.
func (s *Webserver) Serve(ctx context.Context, port int) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func parseTaskID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}
