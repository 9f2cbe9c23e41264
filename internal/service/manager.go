package service

import (
	"context"
	"image"
	"time"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service/ai"
	"objectsguesser/internal/service/proxy"
	"objectsguesser/internal/service/websocket"
)

// Detection sources reported in events.
const (
	SourceUpload = "upload"
	SourceURL    = "url"
	SourceStream = "stream"
)

// Manager ties the detector to the event hub and holds the services handlers need.
type Manager struct {
	detectorService  *ai.DetectorService
	websocketService *websocket.HubService
	proxyClient      *proxy.Client
	logger           *logger.Logger
}

func NewManager(detectorService *ai.DetectorService, websocketService *websocket.HubService, proxyClient *proxy.Client, logger *logger.Logger) *Manager {
	return &Manager{
		detectorService:  detectorService,
		websocketService: websocketService,
		proxyClient:      proxyClient,
		logger:           logger,
	}
}

// Detect runs the pipeline synchronously and, for a real image, notifies viewers.
func (m *Manager) Detect(ctx context.Context, img image.Image, threshold float64, source string) (*ai.Result, error) {
	start := time.Now()

	result, err := m.detectorService.Detect(ctx, img, threshold)
	if err != nil {
		return nil, err
	}

	if img != nil {
		m.SendToViewers(result, threshold, source, time.Since(start))
	}
	return result, nil
}

// SendToViewers publishes a summary of result to the event hub.
func (m *Manager) SendToViewers(result *ai.Result, threshold float64, source string, took time.Duration) {
	if m.websocketService == nil {
		return
	}

	labels := make([]string, 0, len(result.Detections))
	for _, d := range result.Detections {
		labels = append(labels, d.Label)
	}

	m.websocketService.Publish(dto.DetectionEvent{
		Source:     source,
		Count:      result.Count(),
		Labels:     labels,
		Threshold:  threshold,
		DurationMs: took.Milliseconds(),
		Timestamp:  time.Now(),
	})
}

func (m *Manager) GetDetectorService() *ai.DetectorService {
	return m.detectorService
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetProxyClient() *proxy.Client {
	return m.proxyClient
}
