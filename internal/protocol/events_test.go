package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_KnownEvent(t *testing.T) {
	raw := []byte(`{"type":"TIMER_TICK","payload":{"time":"04:59"}}`)
	ev := Decode(raw)
	if ev.Type != EventTimerTick {
		t.Fatalf("type = %s, want TIMER_TICK", ev.Type)
	}
	p, err := ev.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tick := p.(*TimerTickPayload)
	if tick.Time.Seconds != 299 {
		t.Fatalf("seconds = %d, want 299", tick.Time.Seconds)
	}
}

func TestDecode_NumericClock(t *testing.T) {
	ev := Decode([]byte(`{"type":"TIMER_TICK","payload":{"time":42}}`))
	p, err := ev.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := p.(*TimerTickPayload).Time; got.Seconds != 42 || got.String() != "00:42" {
		t.Fatalf("clock = %+v", got)
	}
}

func TestDecode_UnknownShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `this is not json`},
		{name: "unrecognized type", raw: `{"type":"LOBBY_CHAT","payload":{}}`},
		{name: "no type field", raw: `{"hello":"world"}`},
		{name: "json array", raw: `[1,2,3]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Decode([]byte(tc.raw))
			if ev.Type != EventUnknown {
				t.Fatalf("type = %s, want UNKNOWN", ev.Type)
			}
			if string(ev.Payload) != tc.raw {
				t.Fatalf("raw payload not preserved: %s", ev.Payload)
			}
		})
	}
}

func TestParse_StateUpdateDistinguishesAbsentFromEmpty(t *testing.T) {
	raw := []byte(`{"type":"STATE_UPDATE","payload":{"nextState":"answering","data":{"theme":"","answer":"Jobs"}}}`)
	ev := Decode(raw)
	p, err := ev.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	su := p.(*StateUpdatePayload)
	if su.Data.Theme == nil || *su.Data.Theme != "" {
		t.Fatalf("theme should be present-but-empty, got %v", su.Data.Theme)
	}
	if su.Data.Topic != nil {
		t.Fatalf("topic should be absent, got %v", *su.Data.Topic)
	}
	if su.Data.Answer == nil || *su.Data.Answer != "Jobs" {
		t.Fatalf("answer not decoded")
	}
}

func TestParticipant_LegacyLeaderCasing(t *testing.T) {
	raw := []byte(`{"user_id":"u1","user_name":"aoi","role":"player","is_Leader":"true"}`)
	var p Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.IsLeader == nil || !bool(*p.IsLeader) {
		t.Fatalf("string-typed leader flag not accepted: %+v", p)
	}

	raw = []byte(`{"user_id":"u2","user_name":"ren","role":"host"}`)
	var q Participant
	if err := json.Unmarshal(raw, &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.IsLeader != nil {
		t.Fatalf("omitted leader flag should decode as nil")
	}
}
