package session

import "github.com/playful-game/roomsync/internal/protocol"

// Reconcile merges an incoming roster snapshot into the previous roster.
//
// An empty snapshot is transient noise (a client reconnecting before the
// server has rebuilt its participant table) and is discarded. A non-empty
// snapshot replaces the roster wholesale, except that role and leadership
// fields a delta update omitted are back-filled from the previous entry
// with the same user id. The returned bool reports whether anything
// observable (id, role, leader flag) actually changed.
func Reconcile(prev []Participant, incoming []protocol.Participant) ([]Participant, bool) {
	if len(incoming) == 0 {
		return prev, false
	}

	byID := make(map[string]Participant, len(prev))
	for _, p := range prev {
		byID[p.UserID] = p
	}

	next := make([]Participant, 0, len(incoming))
	for _, in := range incoming {
		p := Participant{
			UserID:   in.UserID,
			UserName: in.UserName,
			Role:     in.Role,
		}
		if in.IsLeader != nil {
			p.IsLeader = bool(*in.IsLeader)
		}
		if old, ok := byID[in.UserID]; ok {
			if p.Role == "" {
				p.Role = old.Role
			}
			if in.IsLeader == nil {
				p.IsLeader = old.IsLeader
			}
			if p.UserName == "" {
				p.UserName = old.UserName
			}
		}
		next = append(next, p)
	}

	if rosterEqual(prev, next) {
		return prev, false
	}
	return next, true
}

// rosterEqual is the shallow check that gates downstream re-derivation.
func rosterEqual(a, b []Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UserID != b[i].UserID || a[i].Role != b[i].Role || a[i].IsLeader != b[i].IsLeader {
			return false
		}
	}
	return true
}
