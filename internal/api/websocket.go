package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"snake-arena/internal/metrics"
	"snake-arena/internal/protocol"
	"snake-arena/internal/room"
)

const (
	// MaxWSConnectionsTotal is the default cap on concurrent WebSocket connections
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the default cap per client IP
	MaxWSConnectionsPerIP = 10

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 1024
	sendBufferSize = 256
	callTimeout    = 5 * time.Second

	maxPlayerNameLength = 20
	maxPatternLength    = 16
	defaultPattern      = "solid"
)

var errSessionClosed = errors.New("session closed")

var defaultColors = []string{
	"#ff3e3e", "#53ff45", "#3ea8ff", "#ffd700",
	"#ff9500", "#c04dff", "#00e5d4", "#ff5fa2",
}

// RoomLookup resolves room codes for the WebSocket endpoint.
type RoomLookup interface {
	Lookup(code string) (*room.Room, error)
}

// HubConfig limits and tunes the WebSocket endpoint.
type HubConfig struct {
	MaxConnections int
	MaxPerIP       int
	InputRate      float64 // steering messages per second per session
	InputBurst     int
	AllowedOrigins []string
	Tokens         *TokenSigner
}

// DefaultHubConfig returns production limits.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections: MaxWSConnectionsTotal,
		MaxPerIP:       MaxWSConnectionsPerIP,
		InputRate:      60,
		InputBurst:     20,
	}
}

// WebSocketHub admits WebSocket clients into rooms with DoS protection.
type WebSocketHub struct {
	rooms     RoomLookup
	cfg       HubConfig
	tokens    *TokenSigner
	origins   *OriginChecker
	upgrader  websocket.Upgrader
	wsLimiter *ConnLimiter

	total    atomic.Int64
	mu       sync.Mutex
	sessions map[*wsSession]struct{}
}

// NewWebSocketHub creates a hub. Zero limits fall back to the defaults.
func NewWebSocketHub(rooms RoomLookup, cfg HubConfig) *WebSocketHub {
	d := DefaultHubConfig()
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = d.MaxConnections
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = d.MaxPerIP
	}
	if cfg.Tokens == nil {
		cfg.Tokens = NewTokenSigner("", 0)
	}

	h := &WebSocketHub{
		rooms:     rooms,
		cfg:       cfg,
		tokens:    cfg.Tokens,
		origins:   NewOriginChecker(cfg.AllowedOrigins),
		wsLimiter: NewConnLimiter(cfg.MaxPerIP),
		sessions:  make(map[*wsSession]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if h.origins.Allowed(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of live sessions
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll closes every live session, used on shutdown.
func (h *WebSocketHub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*wsSession, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (h *WebSocketHub) register(s *wsSession) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	count := len(h.sessions)
	h.mu.Unlock()

	metrics.IncWSConnections()
	log.Printf("📱 Client connected from %s (%d total)", s.ip, count)
}

func (h *WebSocketHub) unregister(s *wsSession) {
	h.mu.Lock()
	delete(h.sessions, s)
	count := len(h.sessions)
	h.mu.Unlock()

	metrics.DecWSConnections()
	log.Printf("📱 Client disconnected (%d remaining)", count)
}

// joinParams are the query parameters of GET /ws.
type joinParams struct {
	roomCode string
	name     string
	pattern  string
	color    string
	token    string
	encoding string
}

func parseJoinParams(r *http.Request) (joinParams, error) {
	q := r.URL.Query()
	p := joinParams{
		roomCode: strings.ToUpper(strings.TrimSpace(q.Get("room"))),
		name:     strings.TrimSpace(q.Get("name")),
		pattern:  strings.TrimSpace(q.Get("pattern")),
		color:    strings.TrimSpace(q.Get("color")),
		token:    q.Get("token"),
		encoding: q.Get("enc"),
	}
	if p.roomCode == "" {
		return p, errors.New("room is required")
	}
	if utf8.RuneCountInString(p.name) > maxPlayerNameLength {
		return p, fmt.Errorf("name must be at most %d characters", maxPlayerNameLength)
	}
	if p.pattern == "" || len(p.pattern) > maxPatternLength {
		p.pattern = defaultPattern
	}
	if !validColor(p.color) {
		p.color = ""
	}
	return p, nil
}

func validColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for i := 1; i < 7; i++ {
		ch := c[i]
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F') {
			return false
		}
	}
	return true
}

// HandleWebSocket serves GET /ws. The handler goroutine runs the read loop
// for the connection's lifetime.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)

	params, err := parseJoinParams(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rm, err := h.rooms.Lookup(params.roomCode)
	if err != nil {
		writeRoomError(w, err)
		return
	}

	if n := h.total.Add(1); n > int64(h.cfg.MaxConnections) {
		h.total.Add(-1)
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", n-1)
		metrics.RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	defer h.total.Add(-1)

	if !h.wsLimiter.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		metrics.RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}
	defer h.wsLimiter.Release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s := newWSSession(conn, ip, protocol.CodecFor(params.encoding))
	h.register(s)
	defer h.unregister(s)
	go s.writePump()

	playerID, ok := h.admit(r.Context(), rm, s, params)
	if !ok {
		s.Close()
		return
	}

	left := h.readPump(r.Context(), rm, s, playerID)
	if !left {
		rm.Disconnect(playerID, s)
	}
	s.Close()
}

// admit reconnects the player named by a valid token for this room, and
// otherwise joins a new player.
func (h *WebSocketHub) admit(ctx context.Context, rm *room.Room, s *wsSession, p joinParams) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if p.token != "" {
		claims, err := h.tokens.Verify(p.token)
		switch {
		case err == nil && claims.RoomCode == rm.Code():
			err = rm.Reconnect(callCtx, claims.PlayerID, p.token, s)
			if err == nil {
				return claims.PlayerID, true
			}
			if !errors.Is(err, room.ErrUnknownPlayer) {
				s.sendError(err)
				return "", false
			}
			log.Printf("🔁 Token for %s in room %s is stale, joining fresh", claims.PlayerID, rm.Code())
		case err != nil:
			log.Printf("⚠️ Ignoring reconnect token from %s: %v", s.ip, err)
		}
	}

	playerID := uuid.NewString()
	name := p.name
	if name == "" {
		name = "Snake-" + playerID[:4]
	}
	color := p.color
	if color == "" {
		color = defaultColors[int(playerID[0])%len(defaultColors)]
	}

	_, err := rm.Join(callCtx, room.JoinRequest{
		PlayerID: playerID,
		Name:     name,
		Pattern:  p.pattern,
		Color:    color,
		Token:    h.tokens.Issue(rm.Code(), playerID),
		Session:  s,
	})
	if err != nil {
		s.sendError(err)
		return "", false
	}
	return playerID, true
}

// readPump dispatches client messages until the connection fails. It
// reports whether the player left on purpose.
func (h *WebSocketHub) readPump(ctx context.Context, rm *room.Room, s *wsSession, playerID string) bool {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	inputs := newInputLimiter(h.cfg.InputRate, h.cfg.InputBurst)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ WebSocket read error for %s: %v", playerID, err)
			}
			return false
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := s.codec.Decode(data)
		if err != nil {
			continue
		}
		if left := h.dispatch(ctx, rm, s, playerID, env, inputs); left {
			return true
		}
	}
}

func (h *WebSocketHub) dispatch(ctx context.Context, rm *room.Room, s *wsSession, playerID string, env protocol.Envelope, inputs *rate.Limiter) bool {
	switch env.T {
	case protocol.MsgInput:
		in, err := protocol.DecodePayload[protocol.Input](s.codec, env)
		if err != nil {
			return false
		}
		if !inputs.Allow() {
			metrics.RecordDroppedInput()
			return false
		}
		rm.HandleInput(playerID, in.A, in.B)

	case protocol.MsgStart:
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		if err := rm.StartCountdown(callCtx, playerID); err != nil {
			s.sendError(err)
		}

	case protocol.MsgLeave:
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		if err := rm.Leave(callCtx, playerID); err != nil && !errors.Is(err, room.ErrUnknownPlayer) {
			log.Printf("⚠️ Leave for %s failed: %v", playerID, err)
			return false
		}
		return true

	case protocol.MsgResyncRequest:
		rm.RequestResync(playerID)

	case protocol.MsgPing:
		s.sendMessage(protocol.MsgPong, protocol.Pong{Time: time.Now().UnixMilli()})
	}
	return false
}

// wsSession is one client connection. It implements room.Session.
type wsSession struct {
	conn      *websocket.Conn
	ip        string
	codec     protocol.Codec
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSession(conn *websocket.Conn, ip string, codec protocol.Codec) *wsSession {
	return &wsSession{
		conn:  conn,
		ip:    ip,
		codec: codec,
		send:  make(chan []byte, sendBufferSize),
		done:  make(chan struct{}),
	}
}

func (s *wsSession) Codec() protocol.Codec { return s.codec }

// Send queues a frame without blocking. A client that lets its buffer fill
// up is cut off; it can come back with its token.
func (s *wsSession) Send(frame []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		s.Close()
		return fmt.Errorf("send buffer full: %w", errSessionClosed)
	}
}

// Close stops the write pump, which closes the connection.
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *wsSession) sendMessage(t string, payload any) {
	frame, err := s.codec.Encode(t, payload)
	if err != nil {
		log.Printf("⚠️ Encode %s failed: %v", t, err)
		return
	}
	_ = s.Send(frame)
}

func (s *wsSession) sendError(err error) {
	s.sendMessage(protocol.MsgError, protocol.Error{Message: err.Error()})
}

func (s *wsSession) messageType() int {
	if s.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(s.messageType(), frame); err != nil {
				s.Close()
				return
			}
			metrics.IncrementWSMessages()

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			s.flush()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes frames queued before Close, so error replies reach the client.
func (s *wsSession) flush() {
	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(s.messageType(), frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
