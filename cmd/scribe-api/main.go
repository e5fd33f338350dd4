package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"scribe/internal/config"
	"scribe/internal/engine"
	server "scribe/internal/http"
	"scribe/internal/jobs"
	"scribe/internal/session"
	"scribe/internal/uploads"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	up, err := uploads.New(cfg.Uploads)
	if err != nil {
		log.Fatalf("uploads init failed: %v", err)
	}

	store := jobs.NewStore(cfg.Worker.MaxTrackedJobs)
	runner := jobs.NewRunner(store, func() engine.Engine {
		return engine.NewWhisper(cfg.Engine)
	}, cfg.Worker.MaxConcurrentJobs, logger)

	maxAge := time.Duration(cfg.Session.MaxAgeSeconds) * time.Second
	sessions := session.NewManager(store, maxAge, logger)

	rootCtx := context.Background()
	go sessions.StartSweeper(rootCtx, time.Duration(cfg.Session.SweepIntervalMinutes)*time.Minute)

	s := server.NewServer(server.Deps{
		Config:   cfg,
		Store:    store,
		Runner:   runner,
		Sessions: sessions,
		Uploads:  up,
		Logger:   logger,
	})
	if err := s.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
