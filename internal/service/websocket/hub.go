package websocket

import (
	"context"
	"sync"

	"calendarcam/internal/config"
	"calendarcam/internal/dto"
	"calendarcam/internal/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// broadcastBuffer bounds how many events may wait for the hub loop before
// new ones are dropped.
const broadcastBuffer = 64

// HubService fans status events out to every connected viewer. A viewer that
// connects late first receives the latest event of each type.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	latest     map[string][]byte
	order      []string
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		latest:     make(map[string][]byte),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			for _, kind := range h.order {
				if err := client.WriteMessage(websocket.TextMessage, h.latest[kind]); err != nil {
					h.logger.Error("Error sending message: %v", err)
					break
				}
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
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

// Publish encodes event and queues it for every viewer. It never blocks the
// caller; when the queue is full the event is dropped.
func (h *HubService) Publish(event dto.StatusEvent) {
	message, err := sonic.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding %s event: %v", event.Type, err)
		return
	}

	h.mutex.Lock()
	if _, seen := h.latest[event.Type]; !seen {
		h.order = append(h.order, event.Type)
	}
	h.latest[event.Type] = message
	h.mutex.Unlock()

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("⚠️  Status queue full, dropping %s event", event.Type)
	}
}

// Latest returns the last published event of the given type, if any.
func (h *HubService) Latest(eventType string) ([]byte, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	message, ok := h.latest[eventType]
	return message, ok
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
