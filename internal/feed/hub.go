// Package feed broadcasts ingestion and scoring events to websocket clients.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swap-risk-lab/internal/observability"
)

// Event is one message on the feed.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// Config configures hub behavior.
type Config struct {
	// SendBuffer is the per-client queue length. A client whose queue is
	// full is dropped.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a client may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader origin check. Nil allows any origin.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to every connected client.
type Hub struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// NewHub creates a hub. A nil config uses DefaultConfig.
func NewHub(config *Config, logger *zap.Logger) *Hub {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		config:   cfg,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: checkOrigin},
		logger:   logger,
		now:      time.Now,
		clients:  make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends an event to every client. It never blocks: slow clients
// are disconnected.
func (h *Hub) Publish(eventType string, payload any) {
	if h.closed.Load() {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, Time: h.now().UTC(), Payload: payload})
	if err != nil {
		h.logger.Warn("feed event not encodable", zap.String("type", eventType), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("feed client too slow, disconnecting", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.config.SendBuffer)}
	n, ok := h.register(c)
	if !ok {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
		conn.Close()
		return
	}
	observability.SetFeedClients(n)
	h.logger.Debug("feed client connected", zap.String("remote", conn.RemoteAddr().String()), zap.Int("clients", n))

	go h.writeLoop(c)
	go h.readLoop(c)
}

// register adds c unless the hub closed during the upgrade. The closed check
// and wg.Add happen under mu so Close either sees the client or rejects it.
func (h *Hub) register(c *client) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return 0, false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	return len(h.clients), true
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	observability.SetFeedClients(0)
	h.wg.Wait()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		observability.SetFeedClients(n)
	}
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains the client queue and sends pings.
func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
