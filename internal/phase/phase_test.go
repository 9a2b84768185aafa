package phase

import "testing"

func TestCanAdvanceTo(t *testing.T) {
	cases := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{name: "waiting to setting_topic", from: Waiting, to: SettingTopic, want: true},
		{name: "setting_topic to discussing", from: SettingTopic, to: Discussing, want: true},
		{name: "discussing to answering", from: Discussing, to: Answering, want: true},
		{name: "answering to checking", from: Answering, to: Checking, want: true},
		{name: "checking to finished", from: Checking, to: Finished, want: true},
		{name: "no backward edge", from: Answering, to: Discussing, want: false},
		{name: "no skipping ahead", from: Waiting, to: Discussing, want: false},
		{name: "no self edge", from: Discussing, to: Discussing, want: false},
		{name: "finished is terminal", from: Finished, to: Waiting, want: false},
		{name: "unknown target", from: Waiting, to: Phase("lobby"), want: false},
		{name: "unknown source", from: Phase("lobby"), to: Waiting, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
				t.Fatalf("CanAdvanceTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if p, ok := Parse("discussing"); !ok || p != Discussing {
		t.Fatalf("Parse(discussing) = %v, %v", p, ok)
	}
	if _, ok := Parse("intermission"); ok {
		t.Fatalf("expected unknown phase to be rejected")
	}
}
