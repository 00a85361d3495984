package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func Encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: payload})
}

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte
	hub  *Hub
	mu   sync.Mutex
	// set once Send is closed; guards against send-on-closed.
	closed bool
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// trySend queues data without blocking. A full buffer drops the frame.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close is idempotent. The write pump sees the closed channel, sends a close
// frame and tears down the socket.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	hub := c.hub
	c.mu.Unlock()
	if hub != nil {
		hub.unregister(c)
	}
}

// Hub maintains the set of live connections keyed by connection id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c.ID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
	}
}

func (h *Hub) get(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

func (h *Hub) snapshot(except string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != except {
			clients = append(clients, c)
		}
	}
	return clients
}

// EmitTo sends one event to one connection. It reports false when the
// connection is gone or its buffer is full.
func (h *Hub) EmitTo(connID, event string, payload interface{}) bool {
	c := h.get(connID)
	if c == nil {
		return false
	}
	data, err := Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return false
	}
	if !c.trySend(data) {
		h.log.Warn().Str("event", event).Str("conn_id", connID).Msg("frame dropped")
		return false
	}
	return true
}

func (h *Hub) Broadcast(event string, payload interface{}) {
	h.BroadcastExcept("", event, payload)
}

// BroadcastExcept sends to every connection other than connID.
func (h *Hub) BroadcastExcept(connID, event string, payload interface{}) {
	data, err := Encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	for _, c := range h.snapshot(connID) {
		c.trySend(data)
	}
}

// Disconnect closes the connection, if it is still live.
func (h *Hub) Disconnect(connID string) {
	if c := h.get(connID); c != nil {
		c.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot("") {
		c.Close()
	}
}
