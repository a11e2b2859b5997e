package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docrag/app/server"
	"docrag/config"
	"docrag/logging"
)

const shutdownTimeout = 10 * time.Second

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

	s, err := server.NewServer(context.Background(), cfg)
	if err != nil {
		slog.Error("error to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := s.Run(); err != nil {
			os.Exit(1)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	slog.Info("Received shutdown signal, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Stop(ctx)
}
