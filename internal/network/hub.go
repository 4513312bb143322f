// Package network pushes simulation state to connected UI clients over
// WebSocket. It carries no simulation logic: the hub only fans out the
// read model the simulation hands it.
package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/metrics"
	"github.com/davigarmo/MercaderErrante/server/internal/sim"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Run starts the Hub's main loop. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage()
				default:
					// Slow consumer; drop it rather than stall the tick.
					delete(h.clients, client)
					close(client.send)
					metrics.Get().RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a raw message for every connected client.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		metrics.Get().RecordWSError()
	}
}

// StateChanged implements sim.Notifier: the simulation pushes its read model
// here after every mutation.
func (h *Hub) StateChanged(view sim.StateView) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "state",
		"state": view,
	})
	if err != nil {
		h.logger.Error("Failed to marshal state view: " + err.Error())
		return
	}
	h.Broadcast(payload)
}

var _ sim.Notifier = (*Hub)(nil)
