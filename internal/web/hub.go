package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/geo-locator/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSMessage is a server to browser update.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ClientMessage is a browser to server event.
type ClientMessage struct {
	Type string `json:"type"`
	Zoom int    `json:"zoom,omitempty"`
}

// sendBuffer is how many updates a client may fall behind before it is dropped.
const sendBuffer = 64

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// enqueue hands data to the client's write pump without blocking. It reports
// false when the client is closed or its buffer is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans map updates out to every connected browser.
type Hub struct {
	clients   cmap.ConcurrentMap[string, *wsClient]
	attach    func(func(WSMessage))
	onMessage func(ClientMessage)
	logger    zerolog.Logger
}

// newHub creates a hub. attach must call its argument with the current state
// while holding off concurrent broadcasts.
func newHub(attach func(func(WSMessage)), onMessage func(ClientMessage), logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   cmap.New[*wsClient](),
		attach:    attach,
		onMessage: onMessage,
		logger:    logger,
	}
}

// HandleWebSocket upgrades the request, sends the current map state and then
// listens for client events until the connection drops.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// The snapshot is queued before any broadcast can reach this client
	var encodeErr error
	h.attach(func(snapshot WSMessage) {
		data, err := json.Marshal(snapshot)
		if err != nil {
			encodeErr = err
			return
		}
		client.send <- data
		h.clients.Set(client.id, client)
	})

	if encodeErr != nil {
		h.logger.Error().Err(encodeErr).Str("client", client.id).Msg("Failed to encode snapshot")
		_ = conn.Close()
		return
	}
	telemetry.WebsocketClients.Set(float64(h.clients.Count()))
	h.logger.Info().Str("client", client.id).Str("remote", r.RemoteAddr).Msg("Map client connected")

	go h.writePump(client)
	go h.readPump(client)
}

// writePump is the only goroutine writing to the connection.
func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Str("client", c.id).Msg("Dropping map client")
			h.drop(c)
			return
		}
	}

	// Closed by drop: say goodbye
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
		h.logger.Info().Str("client", c.id).Msg("Map client disconnected")
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if h.onMessage != nil {
			h.onMessage(msg)
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.clients.Remove(c.id)
	c.close()
	telemetry.WebsocketClients.Set(float64(h.clients.Count()))
}

// Broadcast queues msg for every client without waiting on the network.
// Clients that have fallen sendBuffer updates behind are dropped.
func (h *Hub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode map update")
		return
	}

	for item := range h.clients.IterBuffered() {
		if !item.Val.enqueue(data) {
			h.logger.Warn().Str("client", item.Key).Msg("Map client too slow, dropping")
			h.drop(item.Val)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	return h.clients.Count()
}
