package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hubClient struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// close sends a close frame with code and tears the connection down.
func (c *hubClient) close(code int, text string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(code, text)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// Hub fans events out to every connected websocket.
type Hub struct {
	verifier jwtx.Verifier
	svc      *Service
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

func NewHub(v jwtx.Verifier, svc *Service, logger *slog.Logger) *Hub {
	return &Hub{
		verifier: v,
		svc:      svc,
		logger:   logger,
		clients:  make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades GET /ws?token=... . A bad token still upgrades so the
// client can read the ERROR frame and the 4001 close.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	token := r.URL.Query().Get("token")
	claims, err := h.verifier.Verify(token)
	authed := token != "" && err == nil && h.svc.SessionActive(claims.SID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	if !authed {
		log.Info("websocket rejected", "reason", "invalid token")
		frame, _ := json.Marshal(realtime.Event{Type: "ERROR", Message: "Invalid token"})
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		msg := websocket.FormatCloseMessage(realtime.CloseAuthFailed, "authentication failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	c := &hubClient{
		sessionID: claims.SID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
	}
	h.add(c)
	defer h.remove(c)

	log.Info("websocket connected", "user_id", claims.Subject)

	go h.writeLoop(c)

	// Clients never send anything we act on; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			c.close(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*hubClient {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Clients returns the number of connected websockets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every client and returns how many accepted it.
// Slow clients whose buffer is full miss the event.
func (h *Hub) Broadcast(ev realtime.Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "err", err)
		return 0
	}

	n := 0
	for _, c := range h.snapshot() {
		select {
		case c.send <- frame:
			n++
		default:
			h.logger.Warn("dropping event for slow client", "type", ev.Type)
		}
	}
	return n
}

// Disconnect closes every websocket of a session with the auth-failed code,
// which clients treat as final.
func (h *Hub) Disconnect(sessionID string) {
	for _, c := range h.snapshot() {
		if c.sessionID == sessionID {
			c.close(realtime.CloseAuthFailed, "session ended")
		}
	}
}

// Close ends every connection with going-away, which clients retry.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}
