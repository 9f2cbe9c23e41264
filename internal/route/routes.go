package route

import (
	"net/http"
	"os"
	"path/filepath"

	"objectsguesser/internal/config"
	"objectsguesser/internal/handler"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/middleware"
	"objectsguesser/internal/repository"
	"objectsguesser/internal/service"
)

// logFiles maps /logs/{name} to the file it serves.
var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// staticHandler serves the UI: "/" maps to index.html, other paths to files in
// the static directory, and unknown paths get 404.
func staticHandler(staticDir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(staticDir))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		filePath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))
		if info, err := os.Stat(filePath); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}

// SetupRoutes registers the UI, API and log endpoints and wraps the mux with
// the request log (when sink is non-nil) and CORS middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	requestRepo repository.RequestRepository, sink middleware.RecordSink) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/detect", handler.DetectHandler(manager, cfg, logger))
	mux.HandleFunc("/api/detect/stream", handler.DetectStreamHandler(manager, cfg, logger))
	mux.HandleFunc("/api/events", handler.ViewEventsHandler(manager, logger))
	mux.HandleFunc("/api/health", handler.HealthHandler)
	mux.HandleFunc("/api/labels", handler.LabelsHandler(manager))
	mux.HandleFunc("/predict", handler.PredictHandler(manager, logger))

	// Request log endpoints
	mux.HandleFunc("/api/requests", handler.GetRequestsHandler(requestRepo, logger))
	mux.HandleFunc("/api/requests/stats", handler.RequestStatsHandler(requestRepo, logger))
	mux.HandleFunc("/api/requests/clear", handler.ClearRequestsHandler(requestRepo, logger))

	// Log endpoints
	for name, file := range logFiles {
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	mux.HandleFunc("/", staticHandler(cfg.StaticDirectory))

	var h http.Handler = mux
	if sink != nil {
		h = middleware.RequestLogMiddleware(sink, h)
	}
	return middleware.CORSMiddleware(h)
}
