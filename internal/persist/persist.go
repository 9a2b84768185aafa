// Package persist snapshots the session to durable local storage so a
// restart mid-round does not lose round content.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/session"
)

// keyPrefix namespaces every file this adapter owns.
const keyPrefix = "roomsync-"

// Record is one persisted snapshot plus its write timestamp.
type Record struct {
	Session session.Session `json:"session"`
	SavedAt time.Time       `json:"saved_at"`
}

// protectedRecord caches the first non-empty theme/hint per room. It lives
// in its own file so the protection survives process restarts.
type protectedRecord struct {
	Theme string `json:"theme"`
	Hint  string `json:"hint"`
}

// Adapter debounces session snapshots into per-room JSON files. Schedule
// never blocks the caller beyond a mutex; the write happens on the
// debounce timer's goroutine.
type Adapter struct {
	dir      string
	debounce time.Duration
	lg       *zap.Logger

	mu             sync.Mutex
	timer          *time.Timer
	pending        *session.Session
	protected      map[string]protectedRecord // by room id
	protectedDirty map[string]struct{}        // rooms whose protected file needs writing
}

func New(dir string, debounce time.Duration, lg *zap.Logger) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create persistence dir: %w", err)
	}
	return &Adapter{
		dir:            dir,
		debounce:       debounce,
		lg:             lg,
		protected:      make(map[string]protectedRecord),
		protectedDirty: make(map[string]struct{}),
	}, nil
}

// snapshotKey scopes storage per room and, where known, per local user so
// concurrent sessions on one device do not collide.
func snapshotKey(roomID, userID string) string {
	if userID == "" {
		return keyPrefix + "room-" + roomID + ".json"
	}
	return keyPrefix + "room-" + roomID + "-" + userID + ".json"
}

func protectedKey(roomID string) string {
	return keyPrefix + "protected-" + roomID + ".json"
}

// Schedule queues a snapshot write. Bursts of mutations inside one
// debounce window collapse into a single write of the latest state.
func (a *Adapter) Schedule(s session.Session) {
	if s.RoomID == "" {
		return // nothing worth keeping before a room exists
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.captureProtectedLocked(&s)
	a.pending = &s
	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.flushPending)
	} else {
		a.timer.Reset(a.debounce)
	}
}

// captureProtectedLocked applies the protect-once rule: the first
// non-empty theme/hint for a room is cached and always preferred over a
// later state that would blank it.
func (a *Adapter) captureProtectedLocked(s *session.Session) {
	p := a.protected[s.RoomID]
	dirty := false
	if p.Theme == "" && s.Theme != "" {
		p.Theme = s.Theme
		dirty = true
	}
	if p.Hint == "" && s.Hint != "" {
		p.Hint = s.Hint
		dirty = true
	}
	if dirty {
		// The file write happens on the debounce flush; Schedule runs on
		// the dispatch path and must not touch the disk.
		a.protected[s.RoomID] = p
		a.protectedDirty[s.RoomID] = struct{}{}
	}
	if s.Theme == "" {
		s.Theme = p.Theme
	}
	if s.Hint == "" {
		s.Hint = p.Hint
	}
}

func (a *Adapter) flushPending() {
	a.mu.Lock()
	s := a.pending
	a.pending = nil
	dirty := make(map[string]protectedRecord, len(a.protectedDirty))
	for roomID := range a.protectedDirty {
		dirty[roomID] = a.protected[roomID]
	}
	a.protectedDirty = make(map[string]struct{})
	a.mu.Unlock()

	for roomID, p := range dirty {
		a.writeJSON(protectedKey(roomID), p)
	}
	if s == nil {
		return
	}
	a.writeJSON(snapshotKey(s.RoomID, s.LocalUserID), Record{Session: *s, SavedAt: time.Now()})
}

// Flush writes any pending snapshot immediately.
func (a *Adapter) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	a.flushPending()
}

func (a *Adapter) writeJSON(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.lg.Error("marshal snapshot", zap.Error(err))
		return
	}
	path := filepath.Join(a.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		a.lg.Error("write snapshot", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		a.lg.Error("rename snapshot", zap.String("path", path), zap.Error(err))
	}
}

// Restore loads the snapshot for the given room (and user, when known).
// With no room id it falls back to the most recently written snapshot of
// any room. The protect-once cache is reloaded alongside it.
func (a *Adapter) Restore(roomID, userID string) (session.Session, bool) {
	var rec Record
	var ok bool
	if roomID != "" {
		ok = a.readRecord(snapshotKey(roomID, userID), &rec)
		if !ok && userID != "" {
			ok = a.readRecord(snapshotKey(roomID, ""), &rec)
		}
	} else {
		ok = a.latestRecord(&rec)
	}
	if !ok {
		return session.Session{}, false
	}

	s := rec.Session
	if s.Assignments == nil {
		s.Assignments = map[string]string{}
	}

	a.mu.Lock()
	var p protectedRecord
	if a.readJSON(protectedKey(s.RoomID), &p) {
		a.protected[s.RoomID] = p
		if s.Theme == "" {
			s.Theme = p.Theme
		}
		if s.Hint == "" {
			s.Hint = p.Hint
		}
	}
	a.mu.Unlock()

	return s, true
}

func (a *Adapter) readRecord(name string, rec *Record) bool {
	return a.readJSON(name, rec)
}

func (a *Adapter) readJSON(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.lg.Warn("read snapshot", zap.String("name", name), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		a.lg.Warn("corrupt snapshot discarded", zap.String("name", name), zap.Error(err))
		return false
	}
	return true
}

func (a *Adapter) latestRecord(rec *Record) bool {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return false
	}
	found := false
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, keyPrefix+"room-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		var cand Record
		if !a.readJSON(name, &cand) {
			continue
		}
		if !found || cand.SavedAt.After(rec.SavedAt) {
			*rec = cand
			found = true
		}
	}
	return found
}

// Reset removes every storage key this adapter owns plus the protected
// cache. It is the only legitimate way back to the empty initial state.
func (a *Adapter) Reset() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = nil
	a.protected = make(map[string]protectedRecord)
	a.protectedDirty = make(map[string]struct{})
	a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return fmt.Errorf("read persistence dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), keyPrefix) {
			if err := os.Remove(filepath.Join(a.dir, e.Name())); err != nil {
				return fmt.Errorf("remove %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// Close flushes any pending write and stops the debounce timer.
func (a *Adapter) Close() {
	a.Flush()
}
