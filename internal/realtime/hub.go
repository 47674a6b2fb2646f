package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/observability"
)

const (
	// WriteWait bounds a single frame write.
	WriteWait = 10 * time.Second
	// PongWait is how long a connection may stay silent before it is dropped.
	PongWait = 60 * time.Second
	// PingPeriod must be shorter than PongWait.
	PingPeriod = (PongWait * 9) / 10
	// SendBuffer is the number of frames queued per connection before it is
	// considered stalled and dropped.
	SendBuffer = 32
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn      Conn
	send      chan []byte
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) write(messageType int, data []byte, wait time.Duration) error {
	return writeWithDeadline(c.conn, messageType, data, wait)
}

func writeWithDeadline(conn Conn, messageType int, data []byte, wait time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// Hub tracks the connections of this process and fans messages out to all of
// them. Each connection has its own writer goroutine, so a slow observer never
// blocks the caller of BroadcastAll.
type Hub struct {
	mu      sync.RWMutex
	clients map[Conn]*client
	logger  *zap.Logger
	metrics *observability.Metrics

	writeWait  time.Duration
	pingPeriod time.Duration
	sendBuffer int
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[Conn]*client),
		logger:     logger.Named("hub"),
		metrics:    metrics,
		writeWait:  WriteWait,
		pingPeriod: PingPeriod,
		sendBuffer: SendBuffer,
	}
}

// Register adds a connection and starts its writer. The returned channel is
// closed once the writer has stopped using conn.
func (h *Hub) Register(conn Conn) <-chan struct{} {
	h.mu.Lock()
	if existing, ok := h.clients[conn]; ok {
		h.mu.Unlock()
		return existing.stopped
	}
	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()

	go h.writePump(c)

	h.metrics.SetConnections(n)
	h.logger.Debug("websocket registered", zap.Int("connections", n))
	return c.stopped
}

// Unregister removes and closes a connection. Unknown connections are ignored.
func (h *Hub) Unregister(conn Conn) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if ok {
		h.drop(c)
	}
}

// drop removes c unless its connection has been registered again since.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	current, ok := h.clients[c.conn]
	if ok && current == c {
		delete(h.clients, c.conn)
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if !ok || current != c {
		return
	}
	h.metrics.SetConnections(n)
	h.logger.Debug("websocket unregistered", zap.Int("connections", n))
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll queues topic/payload for every connection of this process.
func (h *Hub) BroadcastAll(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeFrame(topic, payload)
	if err != nil {
		return err
	}
	h.Deliver(data)
	return nil
}

// Deliver queues an encoded frame on every connection without blocking. A
// connection whose queue is full is dropped.
func (h *Hub) Deliver(data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !h.enqueue(c, data) {
			h.logger.Warn("dropping stalled websocket", zap.Int("queued", len(c.send)))
			h.drop(c)
		}
	}
}

// Send queues a frame for a single registered connection.
func (h *Hub) Send(conn Conn, event string, payload any) error {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return writeWithDeadline(conn, websocket.TextMessage, data, h.writeWait)
	}
	if !h.enqueue(c, data) {
		h.drop(c)
	}
	return nil
}

// CloseAll closes and drops every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[Conn]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.metrics.SetConnections(0)
}

func (h *Hub) enqueue(c *client, data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.stopped)
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data, h.writeWait); err != nil {
				h.logger.Debug("failed to write ws message", zap.Error(err))
				h.drop(c)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, h.writeWait); err != nil {
				h.logger.Debug("failed to ping websocket", zap.Error(err))
				h.drop(c)
				return
			}
		}
	}
}
