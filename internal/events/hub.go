// Package events fans agent events out to in-process listeners and to UI
// clients connected over websocket.
package events

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

const (
	TopicKeyBindings = "keybindings.updated"
	TopicReset       = "data.reset"

	clientBufferSize = 64
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongTimeout      = 2 * pingInterval
)

// Message is one event as delivered to listeners and websocket clients.
type Message struct {
	Topic string    `json:"topic"`
	Data  any       `json:"data,omitempty"`
	Time  time.Time `json:"time"`
}

// Listener receives events synchronously on the publishing goroutine.
// An interface rather than a func so listeners can be compared for removal.
type Listener interface {
	OnEvent(msg Message)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners []Listener
	clients   map[*client]struct{}
	critical  map[string]bool
	dropped   int64
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logging.WithComponent(logging.OrDiscard(logger), "events"),
		clients:  make(map[*client]struct{}),
		critical: make(map[string]bool),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     loopbackOrigin,
	}
	return h
}

// AddListener registers l. Adding the same listener twice is a no-op.
func (h *Hub) AddListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.listeners {
		if existing == l {
			return
		}
	}
	h.listeners = append(h.listeners, l)
}

func (h *Hub) RemoveListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

// Critical marks topics a client must never miss. A client whose queue is full
// when a critical event arrives is disconnected.
func (h *Hub) Critical(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		h.critical[t] = true
	}
}

// Publish delivers the event to every listener, then queues it for every
// websocket client. Slow clients lose non-critical events rather than block the
// publisher.
func (h *Hub) Publish(topic string, data any) {
	msg := Message{Topic: topic, Data: data, Time: time.Now().UTC()}

	h.mu.Lock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, l := range listeners {
		l.OnEvent(msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode event", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			if h.critical[topic] {
				delete(h.clients, c)
				c.close()
				h.logger.Warn("disconnecting slow client", "topic", topic)
				continue
			}
			h.dropped++
			if h.dropped%100 == 1 {
				h.logger.Warn("dropping events for slow client", "topic", topic, "dropped_total", h.dropped)
			}
		}
	}
}

// ServeWS upgrades the request and streams events until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("event client connected", "clients", count)

	go h.writer(c)
	h.reader(c)

	h.mu.Lock()
	delete(h.clients, c)
	count = len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Info("event client disconnected", "clients", count)
}

// reader drains client frames so control messages (pong, close) are processed.
func (h *Hub) reader(c *client) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every websocket client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// loopbackOrigin accepts requests without an Origin header (native clients) and
// browser pages served from a loopback host.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
