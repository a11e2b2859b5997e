package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docrag/config"
	"docrag/loader"
	"docrag/loader/service"
	"docrag/logging"
	"docrag/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading config: ", err)
	}

	logFile, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatal("error opening log file: ", err)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		slog.Error("error to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		slog.Info("Closing pipeline...")
		if err := p.Close(); err != nil {
			slog.Error("error closing pipeline", "error", err)
		}
	}()

	svc, err := service.New(loader.WatcherConfig{
		SourceDir:      cfg.Loader.SourceDir,
		ArchiveDir:     cfg.Loader.ArchiveDir,
		BadDir:         cfg.Loader.BadDir,
		MonitoringTime: cfg.Loader.MonitoringTime,
	}, p)
	if err != nil {
		slog.Error("error to create loader service", "error", err)
		os.Exit(1)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigch
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
		signal.Stop(sigch)
	}()

	if err := svc.Run(ctx); err != nil {
		slog.Error("loader service stopped with error", "error", err)
	}
}
