package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"objectsguesser/internal/config"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/middleware"
	"objectsguesser/internal/repository"
	"objectsguesser/internal/repository/sqlite"
	"objectsguesser/internal/route"
	"objectsguesser/internal/service"
	"objectsguesser/internal/service/ai"
	"objectsguesser/internal/service/proxy"
	"objectsguesser/internal/service/storage"
	"objectsguesser/internal/service/websocket"
)

// ModelLoader builds the detection model from configuration.
type ModelLoader func(cfg *config.Config, labels ai.Labels, logger *logger.Logger) (ai.Model, error)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	model         ai.Model
	db            *sqlite.DB
	requestRepo   repository.RequestRepository
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
}

// NewApp loads configuration from the environment and builds the application.
func NewApp(loadModel ModelLoader) (*App, error) {
	return New(config.Load(), loadModel)
}

// New wires every service. A model that fails to load is logged and leaves the
// detector unavailable; the server still starts.
func New(cfg *config.Config, loadModel ModelLoader) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &App{config: cfg, logger: log}

	labels, err := ai.LoadLabels(cfg.LabelsPath)
	if err != nil {
		log.Warning("Could not load labels, using COCO: %v", err)
		labels = ai.COCOLabels
	}

	if loadModel != nil {
		m, err := loadModel(cfg, labels, log)
		if err != nil {
			log.Warning("Could not initialize detection network: %v", err)
		} else {
			a.model = m
		}
	}

	face, err := ai.LoadFace(cfg.FontPath, cfg.FontSize)
	if err != nil {
		log.Warning("Could not load font, using built-in face: %v", err)
	}

	annotator, err := ai.NewAnnotator(face, cfg.BoxColor)
	if err != nil {
		log.Warning("Invalid BOX_COLOR, using %s: %v", ai.DefaultBoxColor, err)
		annotator, _ = ai.NewAnnotator(face, ai.DefaultBoxColor)
	}

	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open request log: %w", err)
		}
		a.db = db
		a.requestRepo = sqlite.NewRequestRepository(db)
		a.bufferService = storage.NewBufferService(cfg, log, a.requestRepo)
	}

	a.hubService = websocket.NewHubService(log)
	detector := ai.NewDetectorService(a.model, annotator, log)
	a.manager = service.NewManager(detector, a.hubService, proxy.NewClient(cfg, log), log)

	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	var sink middleware.RecordSink
	if a.bufferService != nil {
		sink = a.bufferService
	}
	return route.SetupRoutes(a.manager, a.config, a.logger, a.requestRepo, sink)
}

// Run starts background services and serves HTTP until SIGINT/SIGTERM.
func (a *App) Run() error {
	go a.hubService.Run()
	if a.bufferService != nil {
		go a.bufferService.Run()
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.Handler(),
	}

	a.logger.Info("🚀 Objects Guesser")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🤖 Model: %s (%s), available: %v", a.config.ModelPath, a.config.ModelKind, a.model != nil)
	if a.config.InferenceURL != "" {
		a.logger.Info("📡 Inference URL: %s", a.config.InferenceURL)
	}
	if a.db != nil {
		a.logger.Info("🗄️  Request log: %s", a.config.DatabasePath)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		a.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		a.logger.Info("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := server.Shutdown(ctx)
	a.Close()
	return err
}

// Close stops background services and releases the model and database.
func (a *App) Close() {
	if a.hubService != nil {
		a.hubService.Stop()
	}
	if a.bufferService != nil {
		a.bufferService.Stop()
		a.bufferService.Flush()
	}
	if a.model != nil {
		if err := a.model.Close(); err != nil {
			a.logger.Error("Failed to close model: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database: %v", err)
		}
	}
	a.logger.Close()
}
