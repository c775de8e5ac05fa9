package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const (
	TypeDockUpdated = "dock_updated"
	TypeFullSync    = "full_sync"
	TypePong        = "pong"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

var _ core.Notifier = (*Hub)(nil)

// Message is pushed on every change, and as a pong.
type Message struct {
	Type      string     `json:"type"`
	Data      *dock.View `json:"data,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// SyncMessage carries every known dock. It is the first frame a client gets.
type SyncMessage struct {
	Type      string      `json:"type"`
	Docks     []dock.View `json:"docks"`
	Timestamp int64       `json:"timestamp"`
}

// Source provides the dock state pushed to clients.
type Source interface {
	ListCommands(ctx context.Context) ([]*dock.Command, error)
	View(cmd *dock.Command) dock.View
}

// Hub fans dock changes out to connected browsers.
type Hub struct {
	source Source
	log    log.Logger

	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	clients    map[*Client]struct{}
	done       chan struct{}
}

func NewHub(source Source) *Hub {
	return &Hub{
		source: source,
		log:    log.WithName("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Matches the relay's Access-Control-Allow-Origin: *.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is done, then closes every client.
func (h *Hub) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.log.Debug("Client connected", "client", c.id, "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("Client disconnected", "client", c.id, "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("Dropping slow websocket client", "client", c.id)
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Notify pushes a dock_updated message for cmd.
func (h *Hub) Notify(ctx context.Context, cmd *dock.Command) error {
	view := h.source.View(cmd)
	msg, err := json.Marshal(Message{Type: TypeDockUpdated, Data: &view, Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the connection and sends a full_sync before any update.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sync, err := h.fullSync(r.Context())
	if err != nil {
		h.log.Error(err, "Failed to build full sync")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		pong: make(chan struct{}, 1),
	}
	c.send <- sync

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) fullSync(ctx context.Context) ([]byte, error) {
	cmds, err := h.source.ListCommands(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]dock.View, 0, len(cmds))
	for _, c := range cmds {
		views = append(views, h.source.View(c))
	}
	return json.Marshal(SyncMessage{Type: TypeFullSync, Docks: views, Timestamp: time.Now().Unix()})
}
