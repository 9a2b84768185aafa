package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/playful-game/roomsync/internal/config"
	"github.com/playful-game/roomsync/internal/gameerr"
	"github.com/playful-game/roomsync/internal/phase"
	"github.com/playful-game/roomsync/internal/protocol"
	"github.com/playful-game/roomsync/internal/session"
)

// gameServer fakes the room backend: chi REST routes plus a websocket
// endpoint. Inbound socket messages are exposed on a channel and events
// can be broadcast to every open connection.
type gameServer struct {
	t    *testing.T
	srv  *httptest.Server
	msgs chan protocol.Message

	mu    sync.Mutex
	conns []*websocket.Conn

	topics chan submittedTopic
}

type submittedTopic struct {
	Topic           string   `json:"topic"`
	OriginalEmojis  []string `json:"originalEmojis"`
	DisplayedEmojis []string `json:"displayedEmojis"`
	DummyIndex      int      `json:"dummyIndex"`
	DummyEmoji      string   `json:"dummyEmoji"`
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()
	gs := &gameServer{
		t:      t,
		msgs:   make(chan protocol.Message, 64),
		topics: make(chan submittedTopic, 4),
	}

	r := chi.NewRouter()
	r.Post("/api/rooms", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"room_id":   "room-1",
			"user_id":   "u1",
			"room_code": "ABCD",
			"theme":     "under the sea",
			"hint":      "it has fins",
		})
	})
	r.Post("/api/user", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"room_id": "room-1", "user_id": "u9", "is_leader": "true",
		})
	})
	r.Post("/api/rooms/{roomID}/start", func(w http.ResponseWriter, req *http.Request) {
		gs.broadcastState(phase.SettingTopic, nil)
	})
	r.Post("/api/rooms/{roomID}/topic", func(w http.ResponseWriter, req *http.Request) {
		var st submittedTopic
		require.NoError(t, json.NewDecoder(req.Body).Decode(&st))
		gs.topics <- st
		gs.broadcastState(phase.Discussing, map[string]any{
			"topic":           st.Topic,
			"originalEmojis":  st.OriginalEmojis,
			"displayedEmojis": st.DisplayedEmojis,
			"dummyIndex":      st.DummyIndex,
			"dummyEmoji":      st.DummyEmoji,
		})
	})
	r.Post("/api/rooms/{roomID}/answer", func(w http.ResponseWriter, req *http.Request) {
		gs.broadcastState(phase.Checking, nil)
	})
	r.Post("/api/rooms/{roomID}/finish", func(w http.ResponseWriter, req *http.Request) {
		gs.broadcastState(phase.Finished, nil)
	})
	r.Post("/api/rooms/{roomID}/skip-discussion", func(w http.ResponseWriter, req *http.Request) {
		gs.broadcastState(phase.Answering, nil)
	})
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		gs.mu.Lock()
		gs.conns = append(gs.conns, conn)
		gs.mu.Unlock()
		for {
			_, data, err := conn.Read(req.Context())
			if err != nil {
				return
			}
			var msg protocol.Message
			if json.Unmarshal(data, &msg) == nil {
				gs.msgs <- msg
			}
		}
	})

	gs.srv = httptest.NewServer(r)
	t.Cleanup(gs.srv.Close)
	return gs
}

func (gs *gameServer) config(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = gs.srv.URL
	cfg.WSBaseURL = "ws" + strings.TrimPrefix(gs.srv.URL, "http")
	cfg.PersistDir = t.TempDir()
	cfg.PersistDebounce = 10 * time.Millisecond
	cfg.ReconnectDelay = 20 * time.Millisecond
	return cfg
}

func (gs *gameServer) broadcast(ev map[string]any) {
	data, err := json.Marshal(ev)
	require.NoError(gs.t, err)
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, c := range gs.conns {
		_ = c.Write(context.Background(), websocket.MessageText, data)
	}
}

func (gs *gameServer) broadcastState(next phase.Phase, data map[string]any) {
	payload := map[string]any{"nextState": string(next)}
	if data != nil {
		payload["data"] = data
	}
	gs.broadcast(map[string]any{"type": "STATE_UPDATE", "payload": payload})
}

func (gs *gameServer) broadcastRoster(participants ...map[string]any) {
	gs.broadcast(map[string]any{
		"type":    "PARTICIPANT_UPDATE",
		"payload": map[string]any{"participants": participants},
	})
}

// waitFor drains snapshots until the predicate holds.
func waitFor(t *testing.T, snaps chan session.Snapshot, desc string, pred func(session.Session) bool) session.Session {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap, ok := <-snaps:
			require.True(t, ok, "snapshot channel closed waiting for %s", desc)
			if pred(snap.Session) {
				return snap.Session
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func expectMessage(t *testing.T, gs *gameServer, want protocol.MessageType) protocol.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-gs.msgs:
			if msg.Type == protocol.MsgPing {
				continue
			}
			require.Equal(t, want, msg.Type)
			return msg
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestCreateRoomSeedsHostRoster(t *testing.T) {
	gs := newGameServer(t)
	c, err := New(gs.config(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	s, err := c.CreateRoom(context.Background(), "aoi")
	require.NoError(t, err)

	// Host standing exists before any participant broadcast arrives.
	assert.True(t, s.IsHost())
	assert.Equal(t, "ABCD", s.RoomCode)
	assert.Equal(t, "under the sea", s.Theme)
	assert.Equal(t, "it has fins", s.Hint)
	require.Len(t, s.Roster, 1)
	assert.Equal(t, protocol.RoleHost, s.Roster[0].Role)

	// The socket announced identity, then asked for a roster refresh.
	connected := expectMessage(t, gs, protocol.MsgClientConnected)
	var cp protocol.ClientConnectedPayload
	require.NoError(t, json.Unmarshal(connected.Payload, &cp))
	assert.Equal(t, "u1", cp.UserID)
	assert.Equal(t, protocol.RoleHost, cp.Role)
	expectMessage(t, gs, protocol.MsgFetchParticipants)
}

func TestFullRoundAsHost(t *testing.T) {
	gs := newGameServer(t)
	c, err := New(gs.config(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateRoom(context.Background(), "aoi")
	require.NoError(t, err)
	expectMessage(t, gs, protocol.MsgClientConnected)
	expectMessage(t, gs, protocol.MsgFetchParticipants)

	snaps := make(chan session.Snapshot, 32)
	c.Subscribe("test", snaps)

	gs.broadcastRoster(
		map[string]any{"user_id": "u1", "user_name": "aoi", "role": "host"},
		map[string]any{"user_id": "u2", "user_name": "ren", "role": "player"},
		map[string]any{"user_id": "u3", "user_name": "mei", "role": "player", "is_Leader": true},
	)
	waitFor(t, snaps, "three participants", func(s session.Session) bool {
		return len(s.Roster) == 3
	})

	require.NoError(t, c.StartGame(context.Background()))
	expectMessage(t, gs, protocol.MsgWaiting)
	waitFor(t, snaps, "setting_topic phase", func(s session.Session) bool {
		return s.Phase == phase.SettingTopic
	})

	picked := []string{"🐟", "🌊", "🐚"}
	require.NoError(t, c.SubmitTopic(context.Background(), "ocean life", picked))

	st := <-gs.topics
	assert.Equal(t, "ocean life", st.Topic)
	assert.Equal(t, picked, st.OriginalEmojis)
	// Decoy injection replaces one position, it never grows the sequence.
	assert.Len(t, st.DisplayedEmojis, len(picked))
	assert.Equal(t, st.DummyEmoji, st.DisplayedEmojis[st.DummyIndex])
	assert.NotEqual(t, picked, st.DisplayedEmojis)
	expectMessage(t, gs, protocol.MsgSubmitTopic)

	s := waitFor(t, snaps, "discussing phase", func(s session.Session) bool {
		return s.Phase == phase.Discussing
	})
	// The creator grades against what they actually picked.
	assert.Equal(t, picked, s.VisibleEmojis())
	assert.Len(t, s.DisplayedEmojis, len(picked))

	// Once the leader has answered, the host kicks off the grading.
	gs.broadcastState(phase.Answering, nil)
	waitFor(t, snaps, "answering phase", func(s session.Session) bool {
		return s.Phase == phase.Answering
	})
	require.NoError(t, c.BeginChecking(context.Background()))
	expectMessage(t, gs, protocol.MsgChecking)
}

func TestActionGuards(t *testing.T) {
	gs := newGameServer(t)
	c, err := New(gs.config(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateRoom(context.Background(), "aoi")
	require.NoError(t, err)

	// Roster of one: starting must fail locally, before any request.
	err = c.StartGame(context.Background())
	var ge *gameerr.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gameerr.CodeValidation, ge.Code)

	// Too few emojis.
	err = c.SubmitTopic(context.Background(), "ocean", []string{"🐟"})
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gameerr.CodeValidation, ge.Code)

	// The host is not the round leader.
	err = c.SubmitAnswer(context.Background(), "a fish")
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gameerr.CodePermission, ge.Code)

	// Nothing to skip while waiting.
	err = c.SkipDiscussion(context.Background())
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gameerr.CodeValidation, ge.Code)

	// No answer to grade while waiting either.
	err = c.BeginChecking(context.Background())
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gameerr.CodeValidation, ge.Code)
}

func TestResumeRestoresPersistedSession(t *testing.T) {
	gs := newGameServer(t)
	cfg := gs.config(t)

	c, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = c.CreateRoom(context.Background(), "aoi")
	require.NoError(t, err)
	c.Close() // flushes the pending snapshot

	c2, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c2.Close()

	ok, err := c2.Resume(context.Background(), "", "")
	require.NoError(t, err)
	require.True(t, ok)

	s := c2.Snapshot()
	assert.Equal(t, "room-1", s.RoomID)
	assert.Equal(t, "u1", s.LocalUserID)
	assert.Equal(t, "under the sea", s.Theme)
	assert.True(t, s.IsHost())
}

func TestResetLeavesRoom(t *testing.T) {
	gs := newGameServer(t)
	cfg := gs.config(t)

	c, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateRoom(context.Background(), "aoi")
	require.NoError(t, err)
	require.NoError(t, c.Reset())

	s := c.Snapshot()
	assert.Empty(t, s.RoomID)
	assert.Equal(t, phase.Waiting, s.Phase)

	// Nothing left to resume.
	ok, err := c.Resume(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
