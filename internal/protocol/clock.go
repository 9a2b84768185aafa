package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Clock is a countdown value replicated from the server's timer. The server
// sends either a formatted "MM:SS" string or a bare number of seconds;
// both decode into the same value.
type Clock struct {
	Seconds int
}

func (c Clock) String() string {
	if c.Seconds < 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", c.Seconds/60, c.Seconds%60)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Seconds = n
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("clock value %s is neither number nor string", data)
	}
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("malformed clock string %q", s)
		}
		c.Seconds = n
		return nil
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return fmt.Errorf("malformed clock minutes in %q", s)
	}
	sec, err := strconv.Atoi(ss)
	if err != nil {
		return fmt.Errorf("malformed clock seconds in %q", s)
	}
	c.Seconds = m*60 + sec
	return nil
}

// Bool tolerates the backend's habit of sending booleans as the strings
// "true"/"false" in some responses.
type Bool bool

func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func (b *Bool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = Bool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bool value %s is neither bool nor string", data)
	}
	*b = Bool(strings.EqualFold(s, "true"))
	return nil
}
