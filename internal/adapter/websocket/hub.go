package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/observability/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type sessionEvent struct {
	sessionID string
	payload   []byte
}

// Hub fans command-completed events out to the /ws/updates clients of the
// event's session. Clients subscribed without a session receive every
// event. The client set is owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan sessionEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int

	log *zap.Logger
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan sessionEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
		case ev := <-h.broadcast:
			for client := range h.clients {
				if client.sessionID != "" && client.sessionID != ev.sessionID {
					continue
				}
				select {
				case client.send <- ev.payload:
				default:
					h.log.Warn("Dropping slow update client", zap.String("session_id", client.sessionID))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	telemetry.WebSocketConnections.WithLabelValues("updates").Set(float64(n))
}

// ClientCount returns the number of connected update clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// HandleEvent decodes a CommandCompletedEvent and queues it for delivery.
// Its signature matches a queue subscription handler.
func (h *Hub) HandleEvent(data []byte) error {
	var ev domain.CommandCompletedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("invalid command event: %w", err)
	}
	select {
	case h.broadcast <- sessionEvent{sessionID: ev.SessionID, payload: data}:
		return nil
	case <-h.done:
		return nil
	}
}

// Publish lets the hub stand in for a message queue when none is configured.
func (h *Hub) Publish(subject string, data []byte) error {
	return h.HandleEvent(data)
}

// ServeClient registers conn and blocks until the client disconnects or the
// hub stops.
func (h *Hub) ServeClient(conn *websocket.Conn, sessionID string) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), sessionID: sessionID}
	select {
	case h.register <- client:
	case <-h.done:
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump()
	}()
	client.readPump()

	select {
	case h.unregister <- client:
	case <-h.done:
	}
	<-writerDone
}

// readPump only consumes control frames; update clients never send data.
func (c *Client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
