package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"docrag/app/api"
	"docrag/app/middleware"
	"docrag/config"
	"docrag/pipeline"
	"docrag/storage"
	"docrag/task"
)

const defaultBodyLimit = 32 * 1024 * 1024

// Deps are the services the HTTP routes need.
type Deps struct {
	RAG       api.RAG
	Files     storage.FileStore
	Tasks     *task.Manager
	Config    *config.Config
	BodyLimit int
	Logger    *slog.Logger
}

// NewApp registers every route on a new fiber app.
func NewApp(d Deps) *fiber.App {
	if d.BodyLimit <= 0 {
		d.BodyLimit = defaultBodyLimit
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    d.BodyLimit,
		})
		checkHandler   = api.NewCheckHandler()
		requestHandler = api.NewRequestHandler(d.RAG)
		fileHandler    = api.NewFileHandler(d.Files, d.RAG, d.Tasks)
		taskHandler    = api.NewTaskHandler(d.Tasks, d.RAG)
		configHandler  = api.NewConfigHandler(d.Config)
	)

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(d.Logger, "/check"))

	var (
		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/query", requestHandler.HandleQuery)
	apiv1.Get("/chat", requestHandler.HandleChat)
	apiv1.Get("/stats", requestHandler.HandleStats)
	apiv1.Get("/config", configHandler.HandleGetConfig)

	apiv1.Get("/files", fileHandler.HandleList)
	apiv1.Post("/files", fileHandler.HandleUpload)
	apiv1.Get("/files/:name/size", fileHandler.HandleSize)
	apiv1.Delete("/files/:name", fileHandler.HandleDelete)
	apiv1.Post("/index/refresh", fileHandler.HandleRefresh)

	apiv1.Post("/transcripts", taskHandler.HandleTranscript)
	apiv1.Get("/tasks", taskHandler.HandleList)
	apiv1.Get("/tasks/:id", taskHandler.HandleGet)

	return app
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
	pipeline   *pipeline.Pipeline
}

// NewServer builds the pipeline and the upload store described by cfg.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	files, err := newFileStore(ctx, cfg.Storage)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	app := NewApp(Deps{
		RAG:       p,
		Files:     files,
		Tasks:     task.NewManager(),
		Config:    cfg,
		BodyLimit: cfg.Server.BodyLimit,
	})

	return &Server{
		listenAddr: cfg.Server.Addr,
		logger:     slog.Default(),
		app:        app,
		pipeline:   p,
	}, nil
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	switch cfg.Kind {
	case config.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Endpoint:  cfg.Endpoint,
		})
	case config.StorageLocal, "":
		return storage.NewLocalStore(cfg.UploadFolder)
	}
	return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
}

// Run blocks until the listener fails or Stop is called.
func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
	}
	if err := s.pipeline.Close(); err != nil {
		s.logger.Error("error closing pipeline", "error", err)
	}
	s.logger.Info("server stopped")
}
