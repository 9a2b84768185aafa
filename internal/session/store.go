package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/protocol"
)

type Msg interface{ isStoreMsg() }

// FromServer carries one inbound protocol event into the dispatch loop.
type FromServer struct {
	Event protocol.Event
}

func (FromServer) isStoreMsg() {}

// Mutate runs an explicit action-path mutation (create/join seeding,
// reset) inside the single-writer loop.
type Mutate struct {
	Fn func(*Session)
}

func (Mutate) isStoreMsg() {}

type Subscribe struct {
	ID     string
	Outbox chan Snapshot // where this subscriber wants to receive snapshots
}

func (Subscribe) isStoreMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isStoreMsg() {}

type GetState struct {
	Reply chan Session
}

func (GetState) isStoreMsg() {}

type Shutdown struct{}

func (Shutdown) isStoreMsg() {}

// Snapshot is an immutable copy of the session handed to subscribers.
type Snapshot struct {
	Version int
	Session Session
}

// Store owns the session record. All mutation flows through one goroutine,
// so no transition or reconciliation needs internal locking; subscribers
// only ever see deep copies.
type Store struct {
	inbox   chan Msg
	session Session
	version int
	subs    map[string]chan Snapshot
	persist func(Session) // fire-and-forget snapshot scheduling, may be nil
	ctx     context.Context
	cancel  context.CancelFunc
	lg      *zap.Logger
}

// NewStore starts the dispatch loop. persist is invoked after every
// applied mutation; it must not block (the persistence adapter debounces
// internally).
func NewStore(parent context.Context, initial Session, persist func(Session), lg *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(parent)
	st := &Store{
		inbox:   make(chan Msg, 64),
		session: initial,
		subs:    make(map[string]chan Snapshot),
		persist: persist,
		ctx:     ctx,
		cancel:  cancel,
		lg:      lg,
	}
	go st.loop()
	return st
}

// Dispatch feeds one inbound event to the loop. Safe from any goroutine.
func (st *Store) Dispatch(ev protocol.Event) {
	select {
	case st.inbox <- FromServer{Event: ev}:
	case <-st.ctx.Done():
	}
}

// Update runs fn on the session inside the loop.
func (st *Store) Update(fn func(*Session)) {
	select {
	case st.inbox <- Mutate{Fn: fn}:
	case <-st.ctx.Done():
	}
}

// State returns a copy of the current session.
func (st *Store) State() Session {
	reply := make(chan Session, 1)
	select {
	case st.inbox <- GetState{Reply: reply}:
		return <-reply
	case <-st.ctx.Done():
		return st.session.Clone() // loop stopped; no more writers
	}
}

// Subscribe registers a snapshot channel and immediately delivers the
// current state on it.
func (st *Store) Subscribe(id string, outbox chan Snapshot) {
	select {
	case st.inbox <- Subscribe{ID: id, Outbox: outbox}:
	case <-st.ctx.Done():
	}
}

func (st *Store) Unsubscribe(id string) {
	select {
	case st.inbox <- Unsubscribe{ID: id}:
	case <-st.ctx.Done():
	}
}

// Close stops the loop and closes all subscriber channels.
func (st *Store) Close() {
	select {
	case st.inbox <- Shutdown{}:
	case <-st.ctx.Done():
	}
}

func (st *Store) loop() {
	for {
		select {
		case <-st.ctx.Done():
			st.shutdown()
			return

		case m := <-st.inbox:
			switch msg := m.(type) {
			case FromServer:
				next, changed := Reduce(st.session, msg.Event, st.lg)
				if !changed {
					break
				}
				st.commit(next)

			case Mutate:
				next := st.session.Clone()
				msg.Fn(&next)
				st.commit(next)

			case Subscribe:
				// Same contract as broadcast: an outbox that cannot take the
				// initial snapshot must not stall the dispatch loop.
				select {
				case msg.Outbox <- Snapshot{Version: st.version, Session: st.session.Clone()}:
					st.subs[msg.ID] = msg.Outbox
				default:
					close(msg.Outbox)
				}

			case Unsubscribe:
				delete(st.subs, msg.ID)

			case GetState:
				msg.Reply <- st.session.Clone()

			case Shutdown:
				st.shutdown()
				return
			}
		}
	}
}

func (st *Store) commit(next Session) {
	st.session = next
	st.version++
	if st.persist != nil {
		st.persist(next.Clone())
	}
	st.broadcast()
}

func (st *Store) broadcast() {
	for id, ch := range st.subs {
		select {
		case ch <- Snapshot{Version: st.version, Session: st.session.Clone()}:
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(st.subs, id)
		}
	}
}

func (st *Store) shutdown() {
	for id, ch := range st.subs {
		close(ch)
		delete(st.subs, id)
	}
	st.cancel()
}
