// Package client wires the pieces of a room session together: the REST
// gateway for actions, the websocket manager for server pushes, the
// single-writer session store, and the local persistence adapter.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/config"
	"github.com/playful-game/roomsync/internal/emoji"
	"github.com/playful-game/roomsync/internal/gameerr"
	"github.com/playful-game/roomsync/internal/gateway"
	"github.com/playful-game/roomsync/internal/persist"
	"github.com/playful-game/roomsync/internal/phase"
	"github.com/playful-game/roomsync/internal/protocol"
	"github.com/playful-game/roomsync/internal/session"
	"github.com/playful-game/roomsync/internal/transport"
)

// PreRoundCountdown is the cosmetic pause a UI shows when the round is
// about to begin. It is presentation state only: the authoritative round
// timer lives server-side and reaches the session as tick events.
const PreRoundCountdown = 5 * time.Second

// Client is the top-level handle for one local participant. It may move
// between rooms over its lifetime, but holds at most one live connection.
type Client struct {
	cfg   config.Config
	gw    *gateway.Client
	store *session.Store
	disk  *persist.Adapter
	lg    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	onStatus func(transport.Status, error)

	mu sync.Mutex
	tm *transport.Manager
}

type Option func(*Client)

// WithStatusFunc forwards connection status changes to the caller's UI.
func WithStatusFunc(fn func(transport.Status, error)) Option {
	return func(c *Client) { c.onStatus = fn }
}

func New(cfg config.Config, lg *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	gw, err := gateway.New(cfg.APIBaseURL, lg)
	if err != nil {
		return nil, err
	}
	disk, err := persist.New(cfg.PersistDir, cfg.PersistDebounce, lg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		gw:     gw,
		disk:   disk,
		lg:     lg,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(c)
	}
	c.store = session.NewStore(ctx, session.New(), disk.Schedule, lg)
	return c, nil
}

// CreateRoom allocates a room and seeds the local session with a
// single-entry roster naming the creator as host. The roster entry is
// written before the socket opens so host-gated actions work immediately,
// instead of waiting for the first participant broadcast.
func (c *Client) CreateRoom(ctx context.Context, userName string) (session.Session, error) {
	resp, err := c.gw.CreateRoom(ctx)
	if err != nil {
		return session.Session{}, err
	}

	c.store.Update(func(s *session.Session) {
		*s = session.New()
		s.RoomID = resp.RoomID
		s.RoomCode = resp.RoomCode
		s.LocalUserID = resp.UserID
		s.LocalUserName = userName
		s.Theme = resp.Theme
		s.Hint = resp.Hint
		s.Roster = []session.Participant{{
			UserID:   resp.UserID,
			UserName: userName,
			Role:     protocol.RoleHost,
		}}
	})

	if err := c.connect(ctx, transport.Identity{
		RoomID:   resp.RoomID,
		UserID:   resp.UserID,
		UserName: userName,
		Role:     protocol.RoleHost,
	}); err != nil {
		return c.store.State(), err
	}
	return c.store.State(), nil
}

// JoinRoom admits the local user into an existing room by its code.
func (c *Client) JoinRoom(ctx context.Context, roomCode, userName string) (session.Session, error) {
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	if roomCode == "" {
		return session.Session{}, gameerr.New(gameerr.CodeValidation, "room code must not be empty")
	}

	resp, err := c.gw.JoinRoom(ctx, roomCode, userName)
	if err != nil {
		return session.Session{}, err
	}

	c.store.Update(func(s *session.Session) {
		*s = session.New()
		s.RoomID = resp.RoomID
		s.RoomCode = roomCode
		s.LocalUserID = resp.UserID
		s.LocalUserName = userName
	})

	if err := c.connect(ctx, transport.Identity{
		RoomID:   resp.RoomID,
		UserID:   resp.UserID,
		UserName: userName,
		Role:     protocol.RolePlayer,
		IsLeader: bool(resp.IsLeader),
	}); err != nil {
		return c.store.State(), err
	}
	return c.store.State(), nil
}

// Resume restores the most recent locally persisted session (or the one
// for the given room when roomID is set) and reconnects. It returns false
// without error when nothing was persisted.
func (c *Client) Resume(ctx context.Context, roomID, userID string) (bool, error) {
	restored, ok := c.disk.Restore(roomID, userID)
	if !ok {
		return false, nil
	}

	c.store.Update(func(s *session.Session) { *s = restored })

	role := protocol.RolePlayer
	if restored.IsHost() {
		role = protocol.RoleHost
	}
	err := c.connect(ctx, transport.Identity{
		RoomID:   restored.RoomID,
		UserID:   restored.LocalUserID,
		UserName: restored.LocalUserName,
		Role:     role,
		IsLeader: restored.IsLeader(),
	})
	return true, err
}

func (c *Client) connect(ctx context.Context, id transport.Identity) error {
	c.mu.Lock()
	if c.tm != nil {
		c.tm.Close()
	}
	c.tm = transport.New(transport.Config{
		WSBaseURL:            c.cfg.WSBaseURL,
		DialTimeout:          c.cfg.DialTimeout,
		HeartbeatInterval:    c.cfg.HeartbeatInterval,
		ReconnectDelay:       c.cfg.ReconnectDelay,
		MaxReconnectAttempts: c.cfg.MaxReconnectAttempts,
	}, id, c.store.Dispatch, c.lg, transport.WithStatusFunc(c.statusChanged))
	tm := c.tm
	c.mu.Unlock()

	return tm.Connect(ctx)
}

func (c *Client) statusChanged(st transport.Status, err error) {
	if c.onStatus != nil {
		c.onStatus(st, err)
	}
}

// StartGame moves the room out of the waiting phase. Gated by the start
// permission and the minimum participant count.
func (c *Client) StartGame(ctx context.Context) error {
	s := c.store.State()
	if !c.cfg.StartPermission.Allows(s.IsHost(), s.IsLeader()) {
		return gameerr.New(gameerr.CodePermission, "you are not allowed to start the game")
	}
	if len(s.Roster) < c.cfg.MinPlayers {
		return gameerr.New(gameerr.CodeValidation,
			fmt.Sprintf("need at least %d players to start, have %d", c.cfg.MinPlayers, len(s.Roster)))
	}
	if s.Phase != phase.Waiting {
		return gameerr.New(gameerr.CodeValidation, "the game has already started")
	}

	if err := c.gw.StartGame(ctx, s.RoomID); err != nil {
		return err
	}
	c.send(ctx, protocol.MsgWaiting, nil)
	return nil
}

// SubmitTopic validates the host's selection, injects the decoy emoji and
// publishes the round content. The session keeps the original sequence so
// the host grades against what they actually picked.
func (c *Client) SubmitTopic(ctx context.Context, topic string, emojis []string) error {
	s := c.store.State()
	if !c.cfg.TopicPermission.Allows(s.IsHost(), s.IsLeader()) {
		return gameerr.New(gameerr.CodePermission, "you are not allowed to set the topic")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return gameerr.New(gameerr.CodeValidation, "topic must not be empty")
	}
	if n := len(emojis); n < c.cfg.MinEmojis || n > c.cfg.MaxEmojis {
		return gameerr.New(gameerr.CodeValidation,
			fmt.Sprintf("pick between %d and %d emojis, got %d", c.cfg.MinEmojis, c.cfg.MaxEmojis, n))
	}

	inj, err := emoji.InjectDummy(emojis)
	if err != nil {
		return gameerr.Wrap(gameerr.CodeValidation, "decoy injection failed", err)
	}

	if err := c.gw.SubmitTopic(ctx, s.RoomID, topic, inj); err != nil {
		return err
	}

	c.store.Update(func(s *session.Session) {
		s.Topic = topic
		s.OriginalEmojis = inj.Original
		s.DisplayedEmojis = inj.Displayed
		s.DummyIndex = inj.DummyIndex
		s.DummyEmoji = inj.DummyEmoji
	})

	c.send(ctx, protocol.MsgSubmitTopic, protocol.SubmitTopicPayload{
		Topic:           topic,
		Emojis:          inj.Original,
		OriginalEmojis:  inj.Original,
		DisplayedEmojis: inj.Displayed,
		DummyIndex:      inj.DummyIndex,
		DummyEmoji:      inj.DummyEmoji,
	})
	return nil
}

// SubmitAnswer records the leader's final guess. The payload repeats the
// known round content so a restarted server can rebuild its table.
func (c *Client) SubmitAnswer(ctx context.Context, answer string) error {
	s := c.store.State()
	if !s.IsLeader() {
		return gameerr.New(gameerr.CodePermission, "only the round leader answers")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return gameerr.New(gameerr.CodeValidation, "answer must not be empty")
	}

	if err := c.gw.SubmitAnswer(ctx, s.RoomID, s.LocalUserID, answer); err != nil {
		return err
	}

	c.store.Update(func(s *session.Session) { s.Answer = answer })

	payload := protocol.AnsweringPayload{
		Answer:          answer,
		Topic:           s.Topic,
		OriginalEmojis:  s.OriginalEmojis,
		DisplayedEmojis: s.DisplayedEmojis,
		DummyEmoji:      s.DummyEmoji,
		Theme:           s.Theme,
		Hint:            s.Hint,
	}
	if s.DummyIndex >= 0 {
		idx := s.DummyIndex
		payload.DummyIndex = &idx
	}
	c.send(ctx, protocol.MsgAnswering, payload)
	return nil
}

// BeginChecking moves the room into the grading phase once the leader's
// answer is in. There is no REST counterpart; the transition rides the
// socket alone.
func (c *Client) BeginChecking(ctx context.Context) error {
	s := c.store.State()
	if !s.IsHost() {
		return gameerr.New(gameerr.CodePermission, "only the host starts the grading")
	}
	if s.Phase != phase.Answering {
		return gameerr.New(gameerr.CodeValidation, "there is no answer to grade yet")
	}
	return c.send(ctx, protocol.MsgChecking, nil)
}

// SkipDiscussion cuts the discussion phase short.
func (c *Client) SkipDiscussion(ctx context.Context) error {
	s := c.store.State()
	if !c.cfg.SkipPermission.Allows(s.IsHost(), s.IsLeader()) {
		return gameerr.New(gameerr.CodePermission, "you are not allowed to skip the discussion")
	}
	if s.Phase != phase.Discussing {
		return gameerr.New(gameerr.CodeValidation, "there is no discussion to skip")
	}
	return c.gw.SkipDiscussion(ctx, s.RoomID)
}

// FinishRoom ends the room for everyone.
func (c *Client) FinishRoom(ctx context.Context) error {
	s := c.store.State()
	if !s.IsHost() {
		return gameerr.New(gameerr.CodePermission, "only the host finishes the room")
	}
	return c.gw.FinishRoom(ctx, s.RoomID)
}

// RefreshRoster asks the server for a fresh participant broadcast.
func (c *Client) RefreshRoster(ctx context.Context) error {
	return c.send(ctx, protocol.MsgFetchParticipants, nil)
}

func (c *Client) send(ctx context.Context, t protocol.MessageType, payload any) error {
	c.mu.Lock()
	tm := c.tm
	c.mu.Unlock()
	if tm == nil {
		return transport.ErrNotConnected
	}
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		return err
	}
	if err := tm.Send(ctx, msg); err != nil {
		// Mirror messages are best-effort; the REST action already landed.
		c.lg.Warn("socket send failed", zap.String("type", string(t)), zap.Error(err))
		return err
	}
	return nil
}

// Snapshot returns a copy of the current session.
func (c *Client) Snapshot() session.Session { return c.store.State() }

// Subscribe registers a snapshot channel with the store.
func (c *Client) Subscribe(id string, outbox chan session.Snapshot) {
	c.store.Subscribe(id, outbox)
}

func (c *Client) Unsubscribe(id string) { c.store.Unsubscribe(id) }

// Reset leaves the current room: closes the connection with a normal
// closure, wipes persisted snapshots and returns the session to its
// initial state. The client can create or join another room afterwards.
func (c *Client) Reset() error {
	c.mu.Lock()
	if c.tm != nil {
		c.tm.Close()
		c.tm = nil
	}
	c.mu.Unlock()

	err := c.disk.Reset()
	c.store.Update(func(s *session.Session) { *s = session.New() })
	return err
}

// Close shuts the client down. Pending persistence is flushed so the
// session survives for a later Resume.
func (c *Client) Close() {
	c.mu.Lock()
	if c.tm != nil {
		c.tm.Close()
		c.tm = nil
	}
	c.mu.Unlock()

	c.store.Close()
	c.disk.Close()
	c.cancel()
}
