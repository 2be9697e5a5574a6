package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnihq/omni/internal/logging"
	"github.com/omnihq/omni/internal/notifications"
	"github.com/omnihq/omni/internal/state"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 32
)

// Event is one frame pushed to websocket clients. Type is
// "<collection>.<op>" for store changes, "notification" for notification
// fan-out, and "dashboard" for the periodic full refresh.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans events out to every connected websocket client. A client that
// cannot keep up misses frames rather than blocking the rest; the periodic
// dashboard refresh catches it up.
type Hub struct {
	upgrader websocket.Upgrader

	clients map[*wsClient]struct{}
	mu      sync.RWMutex

	log *logging.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub. Clients attach through the /ws route.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local daemon, all origins allowed
			},
		},
		clients: make(map[*wsClient]struct{}),
		log:     logging.Named("websocket"),
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client. It never blocks: a client
// with a full send buffer skips this event.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// Watch forwards every state change to connected clients as
// "<collection>.<op>" events. Returns the unsubscribe function.
func (h *Hub) Watch(st *state.Store) func() {
	return st.Subscribe(func(ch state.Change) {
		h.Broadcast(Event{
			Type:      ch.Collection + "." + ch.Op,
			Data:      map[string]string{"id": ch.ID},
			Timestamp: time.Now().UTC(),
		})
	})
}

// ID implements notifications.Subscriber.
func (h *Hub) ID() string { return "websocket" }

// Send implements notifications.Subscriber, pushing each stored
// notification to every client as it is created.
func (h *Hub) Send(n notifications.Notification) error {
	h.Broadcast(Event{Type: "notification", Data: n, Timestamp: time.Now().UTC()})
	return nil
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client attached (%d connected)", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	h.log.Debug("client detached (%d connected)", n)
}

// handleWebSocket upgrades the connection and attaches it to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade: %v", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan Event, wsSendBuffer),
	}
	c.send <- Event{
		Type:      "connected",
		Data:      map[string]string{"message": "Connected to Omni"},
		Timestamp: time.Now().UTC(),
	}
	s.hub.add(c)

	go c.writePump()
	go c.readPump(s.hub)
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings. It owns all writes.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-directional. It exists
// to notice the close handshake and pong replies.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
