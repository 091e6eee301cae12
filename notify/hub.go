package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16

	// DefaultMaxPerUser bounds the open connections of one user.
	DefaultMaxPerUser = 5
)

// ErrTooManyConnections is returned by Serve before upgrading when the user
// already holds MaxPerUser connections.
var ErrTooManyConnections = errors.New("notify: too many realtime connections")

type client struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans notifications out to each user's open websocket connections.
type Hub struct {
	upgrader websocket.Upgrader
	// MaxPerUser is the connection cap per user; zero means no cap.
	MaxPerUser int

	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}
}

// NewHub accepts upgrades from the given origin, or from any origin when it
// is "*" or empty.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		MaxPerUser: DefaultMaxPerUser,
		clients:    make(map[uint]map[*client]struct{}),
	}
}

// Serve upgrades the request and blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	if h.MaxPerUser > 0 && h.Connections(userID) >= h.MaxPerUser {
		return ErrTooManyConnections
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

// Push sends payload to every connection of userID and returns how many
// connections accepted it. Slow connections whose buffer is full are dropped.
func (h *Hub) Push(userID uint, payload interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("encoding realtime notification")
		return 0
	}

	h.mu.RLock()
	var sent int
	var slow []*client
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
	return sent
}

// Connections reports the number of open connections for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[uint]map[*client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			close(c.send)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients only send control frames; anything else is ignored.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
