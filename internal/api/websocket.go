package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/scene-rotator/internal/auth"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeStatus      = "status"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll subscribes a client to every channel.
	WSChannelAll = "*"

	wsSendBufferSize = 256
)

// WSMessage is a frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is a frame received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware owns origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSClient is one connected panel.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string // token subject, empty when auth is disabled

	// status answers "status" requests; nil disables them.
	status func() any

	send chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func newWSClient(hub *Hub, conn *websocket.Conn, subject string) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		subject:  subject,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
// Browsers cannot set headers on WebSocket requests, so the token may
// arrive in the "token" query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.authenticateWS(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, subject)
	c.status = func() any { return s.currentStatus(context.Background()) }
	s.hub.Register(c)

	go c.writePump()
	go c.readPump()
}

// authenticateWS writes an error response and returns false when the
// request may not open a socket.
func (s *Server) authenticateWS(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !s.authEnabled() {
		return "", true
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token == "" {
		writeUnauthorized(w, "token query parameter is required")
		return "", false
	}

	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return "", false
	}
	if !auth.HasPermission(claims.Role, auth.PermRotationRead) {
		writeForbidden(w, "insufficient permissions")
		return "", false
	}
	return claims.Subject, true
}

func (c *WSClient) pongWait() time.Duration {
	return time.Duration(c.hub.cfg.PongTimeout) * time.Second
}

func (c *WSClient) readDeadline() time.Time {
	ping := time.Duration(c.hub.cfg.PingInterval) * time.Second
	return time.Now().Add(ping + c.pongWait())
}

// readPump handles client requests until the connection fails.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	_ = c.conn.SetReadDeadline(c.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err, "subject", c.subject)
			}
			return
		}
		_ = c.conn.SetReadDeadline(c.readDeadline())
		c.handle(data)
	}
}

// writePump owns all writes to the connection.
func (c *WSClient) writePump() {
	ping := time.NewTicker(time.Duration(c.hub.cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.pongWait()))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one client request.
func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		channels, err := parseChannels(req.Payload)
		if err != nil {
			c.reply(req.ID, WSTypeError, errorPayload(fmt.Sprintf("invalid %s payload: %v", req.Type, err)))
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(channels...)
			c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})
		} else {
			c.unsubscribe(channels...)
			c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
		}
	case WSTypeStatus:
		if c.status == nil {
			c.reply(req.ID, WSTypeError, errorPayload("status unavailable"))
			return
		}
		c.reply(req.ID, WSTypeResponse, c.status())
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// parseChannels decodes a channel list, rejecting empty lists and unknown names.
func parseChannels(raw json.RawMessage) ([]string, error) {
	var p WSSubscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if len(p.Channels) == 0 {
		return nil, fmt.Errorf("no channels")
	}
	for _, ch := range p.Channels {
		if ch != WSChannelAll && !rotation.KnownChannel(ch) {
			return nil, fmt.Errorf("unknown channel %q", ch)
		}
	}
	return p.Channels, nil
}

func (c *WSClient) subscribe(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()
	c.hub.logger.Debug("websocket client subscribed", "channels", channels, "subject", c.subject)
}

func (c *WSClient) unsubscribe(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[WSChannelAll]; ok {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

// enqueue queues data for the write pump. It returns false when the client
// is gone or its buffer is full.
func (c *WSClient) enqueue(data []byte) bool {
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

// close ends the write pump. Only the first call has an effect.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: wsTimestamp(),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("marshalling websocket reply", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
