package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"objectsguesser/internal/config"
	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
	"objectsguesser/internal/service"
	"objectsguesser/internal/service/imageio"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewEventsHandler registers viewers in the HubService so they receive a
// DetectionEvent after every finished detection.
func ViewEventsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub := manager.GetWebsocketService()
		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}

// DetectStreamHandler runs detection on every binary message (an encoded image)
// and replies with the same JSON as POST /api/detect. The threshold comes from
// the "threshold" query parameter.
func DetectStreamHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, err := parseThreshold(r.URL.Query().Get("threshold"), cfg.DefaultThreshold)
		if err != nil {
			respondError(w, "Invalid threshold", http.StatusBadRequest)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(cfg.MaxUploadSize)
		logger.Info("Stream client connected from %s", r.RemoteAddr)

		for {
			messageType, data, err := connection.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Stream client disconnected with error: %v", err)
				}
				return
			}

			if messageType != websocket.BinaryMessage {
				connection.WriteJSON(dto.ErrorResponse{Error: "expected a binary image message"})
				continue
			}

			reply, err := detectFrame(r, manager, data, threshold)
			if err != nil {
				if detectErrorStatus(err) >= http.StatusInternalServerError {
					logger.Error("Stream detection failed: %v", err)
				}
				reply = dto.ErrorResponse{Error: err.Error()}
			}

			if err := connection.WriteJSON(reply); err != nil {
				logger.Warning("Failed to write stream reply: %v", err)
				return
			}
		}
	}
}

func detectFrame(r *http.Request, manager *service.Manager, data []byte, threshold float64) (interface{}, error) {
	img, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}

	result, err := manager.Detect(r.Context(), img, threshold, service.SourceStream)
	if err != nil {
		return nil, err
	}
	return buildDetectResponse(result)
}
