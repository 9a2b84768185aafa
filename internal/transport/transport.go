// Package transport owns the one realtime connection a room client holds,
// including the registration handshake, heartbeat and bounded reconnection.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/gameerr"
	"github.com/playful-game/roomsync/internal/protocol"
)

var ErrManagerClosed = errors.New("transport manager is closed")
var ErrNotConnected = errors.New("no open connection")

// Status is surfaced to the UI so reconnection stays a transient indicator
// until the bound is exceeded.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusFailed       Status = "failed" // reconnect bound exceeded, manual retry required
	StatusClosed       Status = "closed"
)

// Identity is the registration payload announced after the socket opens.
type Identity struct {
	RoomID   string
	UserID   string
	UserName string
	Role     string
	IsLeader bool
}

type Config struct {
	WSBaseURL            string        // e.g. ws://localhost:8080
	DialTimeout          time.Duration
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// Manager holds one physical connection per (room, local user). Opening a
// new one always closes the prior connection first.
type Manager struct {
	cfg      Config
	id       Identity
	dispatch func(protocol.Event)
	onStatus func(Status, error)
	lg       *zap.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	gen            int // bumps on every successful dial; stale read loops check it
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer
	attempts       int
	closed         bool
}

type Option func(*Manager)

// WithStatusFunc registers a callback for connection status changes.
func WithStatusFunc(fn func(Status, error)) Option {
	return func(m *Manager) { m.onStatus = fn }
}

func New(cfg Config, id Identity, dispatch func(protocol.Event), lg *zap.Logger, opts ...Option) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	m := &Manager{
		cfg:      cfg,
		id:       id,
		dispatch: dispatch,
		lg:       lg,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) wsURL() string {
	q := url.Values{}
	q.Set("room_id", m.id.RoomID)
	q.Set("user_id", m.id.UserID)
	return fmt.Sprintf("%s/ws?%s", m.cfg.WSBaseURL, q.Encode())
}

// Connect dials the room endpoint, closing any prior connection for the
// same room first, then registers identity and requests a roster refresh.
// A failed dial schedules a reconnection attempt before returning the
// error, so callers see the failure but the manager keeps trying.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.teardownConnLocked(websocket.StatusNormalClosure, "superseded")
	m.mu.Unlock()

	connID := uuid.NewString()
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	m.lg.Info("dialing room endpoint",
		zap.String("conn_id", connID),
		zap.String("room_id", m.id.RoomID))

	conn, _, err := websocket.Dial(dialCtx, m.wsURL(), nil)
	if err != nil {
		m.lg.Warn("dial failed", zap.String("conn_id", connID), zap.Error(err))
		m.scheduleReconnect()
		return gameerr.Wrap(gameerr.CodeNetwork, "websocket dial failed", err)
	}

	if err := m.register(ctx, conn); err != nil {
		conn.CloseNow()
		m.scheduleReconnect()
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "client shutting down")
		return ErrManagerClosed
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.heartbeatStop = make(chan struct{})
	go m.heartbeat(m.heartbeatStop)
	m.mu.Unlock()

	go m.readLoop(gen, conn, connID)
	m.notify(StatusConnected, nil)
	return nil
}

// register announces identity and asks for a roster refresh, so a client
// reconnecting mid-round converges without waiting for the next delta.
func (m *Manager) register(ctx context.Context, conn *websocket.Conn) error {
	hello, err := protocol.NewMessage(protocol.MsgClientConnected, protocol.ClientConnectedPayload{
		UserID:   m.id.UserID,
		UserName: m.id.UserName,
		Role:     m.id.Role,
		IsLeader: m.id.IsLeader,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, hello); err != nil {
		return gameerr.Wrap(gameerr.CodeNetwork, "send registration", err)
	}
	refresh, _ := protocol.NewMessage(protocol.MsgFetchParticipants, nil)
	if err := wsjson.Write(writeCtx, conn, refresh); err != nil {
		return gameerr.Wrap(gameerr.CodeNetwork, "request roster refresh", err)
	}
	return nil
}

func (m *Manager) readLoop(gen int, conn *websocket.Conn, connID string) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.handleDisconnect(gen, connID, err)
			return
		}
		// A connection only counts as re-established once it carries
		// traffic; an accept-then-drop server must still hit the bound.
		m.resetAttempts(gen)
		// Text and binary frames normalize the same way; binary is just a
		// blob that still has to decode into an event envelope.
		m.dispatch(Normalize(data))
	}
}

func (m *Manager) resetAttempts(gen int) {
	m.mu.Lock()
	if gen == m.gen && !m.closed {
		m.attempts = 0
	}
	m.mu.Unlock()
}

// Normalize turns any of the inbound payload shapes (raw bytes, text, or
// an already structured value) into one Event for dispatch. Unknown shapes
// come back wrapped as UNKNOWN rather than crashing or vanishing.
func Normalize(v any) protocol.Event {
	switch t := v.(type) {
	case protocol.Event:
		return t
	case []byte:
		return protocol.Decode(t)
	case json.RawMessage:
		return protocol.Decode(t)
	case string:
		return protocol.Decode([]byte(t))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return protocol.Event{
				Type:    protocol.EventUnknown,
				Payload: json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("%v", v))),
			}
		}
		return protocol.Decode(raw)
	}
}

func (m *Manager) handleDisconnect(gen int, connID string, err error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		// Locally initiated teardown or a superseded connection.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.stopHeartbeatLocked()

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		m.mu.Unlock()
		m.lg.Info("connection closed", zap.String("conn_id", connID))
		m.notify(StatusClosed, nil)
		return
	}

	// Anything except a clean 1000 gets the reconnect treatment; a server
	// announcing 1001 is restarting and is expected to come back. Local
	// teardown never reaches this point (closed/gen checks above).
	m.mu.Unlock()
	m.lg.Warn("connection lost",
		zap.String("conn_id", connID),
		zap.Int("close_status", int(status)),
		zap.Error(err))
	m.scheduleReconnect()
}

// scheduleReconnect counts an attempt and arms the retry timer. Exceeding
// the bound is terminal: the failure is surfaced, not retried.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	exceeded := attempt > m.cfg.MaxReconnectAttempts
	if !exceeded {
		if m.reconnectTimer != nil {
			m.reconnectTimer.Stop()
		}
		m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
			_ = m.Connect(context.Background())
		})
	}
	m.mu.Unlock()

	if exceeded {
		m.lg.Error("reconnect bound exceeded",
			zap.Int("attempts", attempt-1),
			zap.Int("bound", m.cfg.MaxReconnectAttempts))
		terminal := gameerr.New(gameerr.CodeNetwork, "connection lost and could not be re-established")
		m.notify(StatusFailed, terminal)
		// Surface through the normal event path so the session records it.
		payload, _ := json.Marshal(protocol.ErrorPayload{
			Code:    string(gameerr.CodeNetwork),
			Message: gameerr.UserMessage(gameerr.CodeNetwork),
		})
		m.dispatch(protocol.Event{Type: protocol.EventError, Payload: payload})
		return
	}

	m.lg.Info("scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Int("bound", m.cfg.MaxReconnectAttempts),
		zap.Duration("delay", m.cfg.ReconnectDelay))
	m.notify(StatusReconnecting, nil)
}

// heartbeat sends keep-alive pings while the connection is open. Absence
// of application traffic does not by itself trigger reconnection.
func (m *Manager) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ping, _ := protocol.NewMessage(protocol.MsgPing, nil)
			if err := m.Send(context.Background(), ping); err != nil {
				m.lg.Debug("heartbeat skipped", zap.Error(err))
			}
		}
	}
}

// Send writes one control message on the open connection.
func (m *Manager) Send(ctx context.Context, msg protocol.Message) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		return gameerr.Wrap(gameerr.CodeNetwork, fmt.Sprintf("send %s", msg.Type), err)
	}
	return nil
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

func (m *Manager) teardownConnLocked(code websocket.StatusCode, reason string) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopHeartbeatLocked()
	if m.conn != nil {
		m.conn.Close(code, reason)
		m.conn = nil
	}
	m.gen++ // invalidate any read loop still draining the old connection
}

// Close tears the connection down with a normal close code and stops the
// heartbeat and any pending reconnection timer. The manager cannot be
// reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.teardownConnLocked(websocket.StatusNormalClosure, "leaving room")
	m.mu.Unlock()
	m.notify(StatusClosed, nil)
}

func (m *Manager) notify(s Status, err error) {
	if m.onStatus != nil {
		m.onStatus(s, err)
	}
}
