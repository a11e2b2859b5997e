package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docrag/cli"
	"docrag/config"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var p *pipeline.Pipeline
	cli.SetServiceFactory(func(ctx context.Context) (cli.Service, error) {
		built, err := pipeline.Build(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p = built
		return built, nil
	})

	err = cli.Execute(ctx)
	if p != nil {
		_ = p.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
