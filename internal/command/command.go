package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is a normalised command verb.
type Action string

// Action wire tokens. These are the strings persisted in the schedules table.
const (
	ActionOn      Action = "on"
	ActionOff     Action = "off"
	ActionLock    Action = "locked"
	ActionUnlock  Action = "unlocked"
	ActionSetTemp Action = "set_temp"
)

// aliases maps every accepted spelling to its wire token.
var aliases = map[string]Action{
	"on":            ActionOn,
	"power-on":      ActionOn,
	"power_on":      ActionOn,
	"off":           ActionOff,
	"power-off":     ActionOff,
	"power_off":     ActionOff,
	"locked":        ActionLock,
	"lock":          ActionLock,
	"unlocked":      ActionUnlock,
	"unlock":        ActionUnlock,
	"set_temp":      ActionSetTemp,
	"set-temp":      ActionSetTemp,
	"set-attribute": ActionSetTemp,
	"set_attribute": ActionSetTemp,
}

// AllActions returns the wire tokens in a stable order.
func AllActions() []Action {
	return []Action{ActionOn, ActionOff, ActionLock, ActionUnlock, ActionSetTemp}
}

// NormalizeAction maps an action token to its wire form.
// Matching is case-insensitive and ignores surrounding whitespace.
// The boolean is false when the token is not recognised.
func NormalizeAction(token string) (Action, bool) {
	a, ok := aliases[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return "", false
	}
	return a, true
}

// TakesValue reports whether the action requires a value.
func (a Action) TakesValue() bool {
	return a == ActionSetTemp
}

// Command is a request to change one device. Treat it as immutable.
type Command struct {
	DeviceID string `json:"device_id"`

	// Action is kept as submitted. The executor normalises it, so
	// unknown tokens survive persistence and fail at execution time.
	Action string `json:"action"`

	// Value is nil when absent.
	Value *string `json:"value,omitempty"`
}

// New builds a Command. An empty value is treated as absent.
func New(deviceID, action, value string) Command {
	c := Command{DeviceID: deviceID, Action: action}
	if value != "" {
		v := value
		c.Value = &v
	}
	return c
}

// ValueString returns the value or "" when absent.
func (c Command) ValueString() string {
	if c.Value == nil {
		return ""
	}
	return *c.Value
}

// HasValue reports whether a non-empty value was supplied.
func (c Command) HasValue() bool {
	return c.Value != nil && *c.Value != ""
}

func (c Command) String() string {
	if c.HasValue() {
		return fmt.Sprintf("%s %s=%s", c.DeviceID, c.Action, *c.Value)
	}
	return fmt.Sprintf("%s %s", c.DeviceID, c.Action)
}

// DecodeValue converts a JSON value field to the Command form. Strings are
// taken as-is and numbers by their literal text, so 25 and "25" are equal.
// Absent, null and blank values yield nil. Other JSON types are rejected
// with ErrInvalidValue.
func DecodeValue(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	} else {
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("%w: must be a string or a number", ErrInvalidValue)
		}
		s = n.String()
	}

	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return &s, nil
}
