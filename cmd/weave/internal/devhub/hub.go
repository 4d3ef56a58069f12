// Package devhub pushes compile results to connected editors and browsers
// over a websocket while `weave watch --serve` runs.
package devhub

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is where the hub accepts websocket connections
const Path = "/weave/ws"

// Message types
const (
	TypeCompiled = "COMPILED"
	TypeError    = "ERROR"
	TypeAck      = "ACK"
)

// Message is sent to every client after a compile
type Message struct {
	Type      string   `json:"type"`
	File      string   `json:"file,omitempty"`
	Output    string   `json:"output,omitempty"`
	Component string   `json:"component,omitempty"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Hub tracks websocket clients
type Hub struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	server   *http.Server
}

// New creates a hub
func New() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			// Allow all origins in dev mode
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch msg["type"] {
		case "HELLO":
			h.mu.Lock()
			err := conn.WriteJSON(Message{Type: TypeAck})
			h.mu.Unlock()
			if err != nil {
				return
			}
		default:
			log.Printf("Unknown WebSocket message type: %v", msg["type"])
		}
	}
}

// Broadcast sends msg to every client. Clients that cannot be written to
// are dropped.
func (h *Hub) Broadcast(msg Message) {
	msg.Type = strings.ToUpper(msg.Type)

	// writes are serialized under the write lock
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.WriteJSON(msg); err != nil {
			log.Printf("Failed to send message to client: %v", err)
			client.Close()
			delete(h.clients, client)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Start listens on addr in the background and returns the bound address
func (h *Hub) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	h.server = &http.Server{Handler: mux}
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️  Dev hub stopped: %v", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown stops the server started by Start
func (h *Hub) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}
