package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"sealed-auction/internal/domain"
	"sealed-auction/pkg/logger"
)

// Hub fans lifecycle events out to connected websocket clients. It is
// a broadcast surface only: clients never send anything meaningful, and
// a connection that cannot keep up is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*client]struct{}
	log      logger.Logger
}

// client serializes writes: the underlying connection permits only one
// concurrent writer, while publishes arrive from many request goroutines.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Handle upgrades an echo request and keeps the connection registered
// until the peer goes away.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn}
	h.register(cl)
	h.log.Info("Event stream client connected", "remote_addr", conn.RemoteAddr().String())

	// Drain reads so close frames and pings are processed.
	go func() {
		defer h.unregister(cl)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return nil
}

func (h *Hub) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.writeJSON(event); err != nil {
			h.log.Warn("Dropping event stream client", "error", err)
			h.unregister(cl)
		}
	}
	return nil
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		cl.conn.Close()
	}
	h.clients = make(map[*client]struct{})
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.conn.Close()
	}
}
