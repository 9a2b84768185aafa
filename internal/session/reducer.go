package session

import (
	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/phase"
	"github.com/playful-game/roomsync/internal/protocol"
)

// Reduce applies one inbound protocol event to the session, returning the
// next session and whether anything observable changed. It never fails:
// malformed or out-of-order input is logged and leaves the session as-is.
func Reduce(s Session, ev protocol.Event, lg *zap.Logger) (Session, bool) {
	switch ev.Type {
	case protocol.EventStateUpdate:
		return applyStateUpdate(s, ev, lg)
	case protocol.EventParticipantUpdate:
		return applyParticipantUpdate(s, ev, lg)
	case protocol.EventTimerTick:
		return applyTimerTick(s, ev, lg)
	case protocol.EventError:
		return applyError(s, ev, lg)
	default:
		lg.Warn("dropping unrecognized event",
			zap.String("type", string(ev.Type)),
			zap.Int("payload_bytes", len(ev.Payload)))
		return s, false
	}
}

func applyStateUpdate(s Session, ev protocol.Event, lg *zap.Logger) (Session, bool) {
	p, err := ev.Parse()
	if err != nil {
		lg.Warn("malformed STATE_UPDATE", zap.Error(err))
		return s, false
	}
	su := p.(*protocol.StateUpdatePayload)

	next, ok := phase.Parse(su.NextState)
	if !ok {
		lg.Warn("unrecognized phase name", zap.String("next_state", su.NextState))
		return s, false
	}

	advancing := false
	switch {
	case next == s.Phase:
		// Duplicate broadcast of the current phase. Still merge the data;
		// late assignment tables arrive this way.
	case s.Phase.CanAdvanceTo(next):
		advancing = true
	default:
		lg.Warn("ignoring out-of-order transition",
			zap.String("from", s.Phase.String()),
			zap.String("to", next.String()))
		return s, false
	}

	out := s.Clone()
	changed := false
	if advancing {
		out.Phase = next
		changed = true
	}
	if out.LastError != "" {
		out.LastError = ""
		changed = true
	}
	if mergeRoundData(&out, su.Data) {
		changed = true
	}
	if !changed {
		return s, false
	}
	lg.Debug("state update applied",
		zap.String("phase", out.Phase.String()),
		zap.Bool("advanced", advancing))
	return out, true
}

// mergeRoundData applies field-level "if present, overwrite; else keep
// previous" semantics. A transition with no payload must never null out
// previously known round content.
func mergeRoundData(out *Session, d *protocol.RoundData) bool {
	if d == nil {
		return false
	}
	changed := false

	if d.Topic != nil && out.Topic != *d.Topic {
		out.Topic = *d.Topic
		changed = true
	}
	if d.Answer != nil && out.Answer != *d.Answer {
		out.Answer = *d.Answer
		changed = true
	}
	// Theme and hint are protect-once: a blank value from a later update
	// never erases what downstream phases still display.
	if d.Theme != nil && *d.Theme != "" && out.Theme != *d.Theme {
		out.Theme = *d.Theme
		changed = true
	}
	if d.Hint != nil && *d.Hint != "" && out.Hint != *d.Hint {
		out.Hint = *d.Hint
		changed = true
	}

	if len(d.OriginalEmojis) > 0 {
		out.OriginalEmojis = append([]string(nil), d.OriginalEmojis...)
		changed = true
	}
	if len(d.DisplayedEmojis) > 0 {
		out.DisplayedEmojis = append([]string(nil), d.DisplayedEmojis...)
		changed = true
	} else if len(d.SelectedEmojis) > 0 && len(out.DisplayedEmojis) == 0 {
		// Older servers only send selected_emojis; for non-creators that
		// is already the decoy-injected sequence.
		out.DisplayedEmojis = append([]string(nil), d.SelectedEmojis...)
		changed = true
	}
	if d.DummyIndex != nil && out.DummyIndex != *d.DummyIndex {
		out.DummyIndex = *d.DummyIndex
		changed = true
	}
	if d.DummyEmoji != nil && *d.DummyEmoji != "" && out.DummyEmoji != *d.DummyEmoji {
		out.DummyEmoji = *d.DummyEmoji
		changed = true
	}

	if len(d.Assignments) > 0 {
		m := make(map[string]string, len(d.Assignments))
		for _, a := range d.Assignments {
			m[a.UserID] = a.Emoji
		}
		out.Assignments = m
		// Absent assignment for the local user keeps the previous value;
		// duplicate and late broadcasts are expected.
		if e, ok := m[out.LocalUserID]; ok {
			out.AssignedEmoji = e
		}
		changed = true
	}
	return changed
}

func applyParticipantUpdate(s Session, ev protocol.Event, lg *zap.Logger) (Session, bool) {
	p, err := ev.Parse()
	if err != nil {
		lg.Warn("malformed PARTICIPANT_UPDATE", zap.Error(err))
		return s, false
	}
	pu := p.(*protocol.ParticipantUpdatePayload)

	roster, changed := Reconcile(s.Roster, pu.Participants)
	if !changed {
		return s, false
	}
	out := s.Clone()
	out.Roster = roster
	out.LastError = ""
	lg.Debug("roster reconciled", zap.Int("participants", len(roster)))
	return out, true
}

func applyTimerTick(s Session, ev protocol.Event, lg *zap.Logger) (Session, bool) {
	p, err := ev.Parse()
	if err != nil {
		lg.Warn("malformed TIMER_TICK", zap.Error(err))
		return s, false
	}
	tick := p.(*protocol.TimerTickPayload)
	if s.Clock == tick.Time {
		return s, false
	}
	out := s.Clone()
	out.Clock = tick.Time
	return out, true
}

func applyError(s Session, ev protocol.Event, lg *zap.Logger) (Session, bool) {
	p, err := ev.Parse()
	if err != nil {
		lg.Warn("malformed ERROR event", zap.Error(err))
		return s, false
	}
	ep := p.(*protocol.ErrorPayload)
	lg.Warn("server error event",
		zap.String("code", ep.Code),
		zap.String("message", ep.Message))
	if s.LastError == ep.Message {
		return s, false
	}
	out := s.Clone()
	out.LastError = ep.Message
	return out, true
}
