// Package session holds the authoritative client-side record of one room
// and the single-writer store that mutates it.
package session

import (
	"maps"
	"slices"

	"github.com/playful-game/roomsync/internal/phase"
	"github.com/playful-game/roomsync/internal/protocol"
)

// Participant is one roster entry after reconciliation.
type Participant struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
	IsLeader bool   `json:"is_leader"`
}

// Session is the full client-side state of one room for one local
// participant. It is mutated only through the Store's dispatch loop;
// everything handed out is a deep copy.
type Session struct {
	RoomID        string `json:"room_id"`
	RoomCode      string `json:"room_code"`
	LocalUserID   string `json:"local_user_id"`
	LocalUserName string `json:"local_user_name"`

	Phase  phase.Phase   `json:"phase"`
	Roster []Participant `json:"roster"`

	Topic  string `json:"topic"`
	Theme  string `json:"theme"`
	Hint   string `json:"hint"`
	Answer string `json:"answer"`

	OriginalEmojis  []string `json:"original_emojis"`
	DisplayedEmojis []string `json:"displayed_emojis"`
	DummyIndex      int      `json:"dummy_index"` // -1 until a decoy is known
	DummyEmoji      string   `json:"dummy_emoji"`

	AssignedEmoji string            `json:"assigned_emoji"`
	Assignments   map[string]string `json:"assignments"`

	Clock     protocol.Clock `json:"clock"`
	LastError string         `json:"last_error"`
}

// New returns the empty initial session.
func New() Session {
	return Session{
		Phase:       phase.Waiting,
		DummyIndex:  -1,
		Assignments: map[string]string{},
	}
}

// Clone deep-copies the session so readers never alias store-owned state.
func (s Session) Clone() Session {
	c := s
	c.Roster = slices.Clone(s.Roster)
	c.OriginalEmojis = slices.Clone(s.OriginalEmojis)
	c.DisplayedEmojis = slices.Clone(s.DisplayedEmojis)
	c.Assignments = maps.Clone(s.Assignments)
	if c.Assignments == nil {
		c.Assignments = map[string]string{}
	}
	return c
}

// IsHost derives host status from the roster and local identity. It is
// never stored, so it cannot drift from the roster.
func (s Session) IsHost() bool {
	for _, p := range s.Roster {
		if p.UserID == s.LocalUserID && p.Role == protocol.RoleHost {
			return true
		}
	}
	return false
}

// IsLeader derives leadership the same way.
func (s Session) IsLeader() bool {
	for _, p := range s.Roster {
		if p.UserID == s.LocalUserID && p.IsLeader {
			return true
		}
	}
	return false
}

// VisibleEmojis returns the emoji sequence this participant should see:
// the room creator grades against the original set, everyone else gets the
// decoy-injected one.
func (s Session) VisibleEmojis() []string {
	if s.IsHost() && len(s.OriginalEmojis) > 0 {
		return slices.Clone(s.OriginalEmojis)
	}
	return slices.Clone(s.DisplayedEmojis)
}
