package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"thirdcoast.systems/crate/internal/config"
	"thirdcoast.systems/crate/internal/downloader"
	"thirdcoast.systems/crate/internal/history"
	"thirdcoast.systems/crate/internal/spotify"
	"thirdcoast.systems/crate/internal/tasks"
	"thirdcoast.systems/crate/internal/web"
	"thirdcoast.systems/crate/pkg/spotdl"
)

const submitQueueSize = 64

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting crate daemon")

	// Best effort: local development keeps its settings in a .env file.
	_ = godotenv.Load()

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	downloader.RegisterDefaults(viper.GetViper())

	if err := os.MkdirAll(filepath.Join(conf.DownloadDir, ".staging"), 0o755); err != nil {
		slog.Error("failed to create download dir", "dir", conf.DownloadDir, "error", err)
		os.Exit(1)
	}

	versionCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	spotdlClient := spotdl.New()
	spotdlClient.Path = conf.SpotdlPath
	if v, err := spotdlClient.Version(versionCtx); err != nil {
		slog.Warn("spotdl executable not reachable", "path", conf.SpotdlPath, "error", err)
	} else {
		slog.Info("spotdl ready", "version", v)
	}
	cancel()

	pool, err := history.OpenPoolWithRetry(ctx, conf.DatabaseDSN, conf.DatabaseRetries)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := history.Migrate(ctx, pool); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := history.NewStore(pool)
	registry := tasks.NewRegistry()

	var metadata downloader.MetadataClient
	if conf.SpotifyClientID != "" && conf.SpotifyClientSecret != "" {
		metadata, err = spotify.New(ctx, conf.SpotifyClientID, conf.SpotifyClientSecret)
		if err != nil {
			slog.Error("failed to initialize spotify metadata client", "error", err)
			os.Exit(1)
		}
		slog.Info("metadata source: spotify web api")
	} else {
		metadata = downloader.SpotdlMetadata{Path: conf.SpotdlPath}
		slog.Info("metadata source: spotdl executable")
	}

	dl := downloader.New(registry, store, metadata, downloader.SlogSink{},
		viper.GetViper(), conf.DownloadDir, conf.SpotdlPath)

	submit := make(chan web.Submission, submitQueueSize)

	workers := conf.DownloadWorkers
	if workers <= 0 {
		workers = 2
	}
	slog.Info("download workers started", "workers", workers)
	for i := 0; i < workers; i++ {
		go downloadWorker(ctx, dl, submit)
	}

	server := web.NewWebserver(dl, store, submit)
	slog.Info("api listening", "port", conf.WebServerPort)
	if err := server.Serve(ctx, conf.WebServerPort); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("webserver stopped", "error", err)
	}

	slog.Info("crate daemon stopping")
}

func downloadWorker(ctx context.Context, dl *downloader.Downloader, submit <-chan web.Submission) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-submit:
			paths, err := dl.Download(ctx, sub.URL, sub.Parallel)
			if err != nil {
				var execErr *spotdl.ExecError
				if errors.As(err, &execErr) {
					slog.Error("download failed",
						"url", sub.URL,
						"error", err,
						"exit_code", execErr.ExitCode,
						"stderr", execErr.Stderr)
				} else {
					slog.Error("download failed", "url", sub.URL, "error", err)
				}
				continue
			}
			slog.Info("download complete", "url", sub.URL, "files", len(paths))
		}
	}
}
