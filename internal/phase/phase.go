package phase

// Phase is the room's current stage in the round lifecycle. Values match
// the wire protocol's nextState field.
type Phase string

const (
	Waiting      Phase = "waiting"
	SettingTopic Phase = "setting_topic"
	Discussing   Phase = "discussing"
	Answering    Phase = "answering"
	Checking     Phase = "checking"
	Finished     Phase = "finished"
)

// order defines the single allowed forward path through a round.
var order = map[Phase]int{
	Waiting:      0,
	SettingTopic: 1,
	Discussing:   2,
	Answering:    3,
	Checking:     4,
	Finished:     5,
}

func (p Phase) String() string { return string(p) }

func (p Phase) Valid() bool {
	_, ok := order[p]
	return ok
}

// Parse returns the Phase for a wire value, reporting whether it is known.
func Parse(s string) (Phase, bool) {
	p := Phase(s)
	return p, p.Valid()
}

// CanAdvanceTo reports whether moving from p to next is a legal transition.
// Only the immediate forward edge is legal; skips arrive as the same edge,
// just earlier than the timer would have produced it.
func (p Phase) CanAdvanceTo(next Phase) bool {
	from, ok := order[p]
	if !ok {
		return false
	}
	to, ok := order[next]
	if !ok {
		return false
	}
	return to == from+1
}
