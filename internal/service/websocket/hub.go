package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"objectsguesser/internal/dto"
	"objectsguesser/internal/logger"
)

const broadcastBuffer = 64

// writeWait bounds a single write to one viewer.
var writeWait = 5 * time.Second

// HubService fans detection events out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// deliver writes message to every viewer in parallel, outside the lock, and
// drops the viewers whose write failed. Run is the only writer of each
// connection, so it waits for all writes before returning.
func (h *HubService) deliver(message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []*websocket.Conn
	)
	for _, client := range clients {
		wg.Add(1)
		go func(client *websocket.Conn) {
			defer wg.Done()
			client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("Error sending message: %v", err)
				failedMu.Lock()
				failed = append(failed, client)
				failedMu.Unlock()
			}
		}(client)
	}
	wg.Wait()

	if len(failed) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range failed {
		delete(h.clients, client)
		client.Close()
	}
	h.mutex.Unlock()
}

// Stop closes every viewer and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every viewer. Events are dropped when the hub is
// saturated so detection requests never wait on slow viewers.
func (h *HubService) Publish(event dto.DetectionEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode detection event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Event hub saturated, dropping event from %s", event.Source)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
