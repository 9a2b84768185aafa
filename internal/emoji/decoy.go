package emoji

import (
	"errors"
	"math/rand"
	"slices"
)

var ErrEmptySelection = errors.New("cannot inject decoy into empty emoji selection")

// decoyPool holds emojis unlikely to show up in a round's topic, so the
// substituted one blends in without being an obvious repeat.
var decoyPool = []string{
	"🔧", "🔨", "🪛", "⚙️", "🔩",
	"🚗", "🚕", "🚙", "🚌", "🚎",
	"🌵", "🌴", "🌲", "🌳", "🌿",
	"🏔️", "⛰️", "🗻", "🏕️", "🏖️",
	"📱", "💻", "⌨️", "🖥️", "🖨️",
	"🎲", "🎯", "🎪", "🎭", "🎨",
	"🔔", "🔕", "📢", "📣", "📯",
	"🧲", "🧪", "🧬", "🔬", "🔭",
}

// Injection is the result of replacing one leader-chosen emoji with a decoy.
// Original goes to the room creator for grading, Displayed to everyone else.
type Injection struct {
	Original   []string `json:"originalEmojis"`
	Displayed  []string `json:"displayedEmojis"`
	DummyIndex int      `json:"dummyIndex"`
	DummyEmoji string   `json:"dummyEmoji"`
}

// InjectDummy replaces one uniformly chosen position of emojis with a decoy
// drawn from the pool, excluding any emoji already present in the input.
// When the whole pool is contained in the input it falls back to the full
// pool and accepts a possible duplicate. The input slice is never mutated.
func InjectDummy(emojis []string) (Injection, error) {
	if len(emojis) == 0 {
		return Injection{}, ErrEmptySelection
	}

	original := slices.Clone(emojis)
	idx := rand.Intn(len(emojis))

	candidates := make([]string, 0, len(decoyPool))
	for _, d := range decoyPool {
		if !slices.Contains(emojis, d) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		candidates = decoyPool
	}
	decoy := candidates[rand.Intn(len(candidates))]

	displayed := slices.Clone(emojis)
	displayed[idx] = decoy

	return Injection{
		Original:   original,
		Displayed:  displayed,
		DummyIndex: idx,
		DummyEmoji: decoy,
	}, nil
}

// PoolSize exposes the number of curated decoy candidates.
func PoolSize() int { return len(decoyPool) }

// Pool returns a copy of the curated decoy candidates.
func Pool() []string { return slices.Clone(decoyPool) }
