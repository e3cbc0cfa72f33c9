package input

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire discriminators for the JSON envelope.
const (
	typeKey   = "key"
	typeMouse = "mouse"
)

// ErrUnknownType is returned by Decode when the envelope's type is neither
// "key" nor "mouse".
var ErrUnknownType = errors.New("input: unknown event type")

// envelope is the stable JSON form shared by both variants:
//
//	{"type":"key","kind":"press","code":67}
//	{"type":"mouse","kind":"left_down","x":10,"y":20}
//
// Recorded events may carry "at", the capture time in Unix milliseconds.
// Events themselves are untimed; the field only travels on the wire.
type envelope struct {
	Type string   `json:"type"`
	Kind string   `json:"kind"`
	Code *KeyCode `json:"code,omitempty"`
	X    *int     `json:"x,omitempty"`
	Y    *int     `json:"y,omitempty"`
	At   *int64   `json:"at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e KeyEvent) MarshalJSON() ([]byte, error) {
	kind, err := e.Kind.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type string  `json:"type"`
		Kind string  `json:"kind"`
		Code KeyCode `json:"code"`
	}{typeKey, string(kind), e.Code})
}

// MarshalJSON implements json.Marshaler.
func (e MouseEvent) MarshalJSON() ([]byte, error) {
	kind, err := e.Kind.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Kind string `json:"kind"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}{typeMouse, string(kind), e.Position.X, e.Position.Y})
}

// Encode returns the compact JSON form of ev.
func Encode(ev Event) ([]byte, error) {
	switch v := ev.(type) {
	case KeyEvent:
		return v.MarshalJSON()
	case MouseEvent:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("input: cannot encode %T", ev)
	}
}

// EncodeAt is Encode with the capture time recorded in the "at" field.
func EncodeAt(ev Event, at time.Time) ([]byte, error) {
	var env envelope
	switch v := ev.(type) {
	case KeyEvent:
		kind, err := v.Kind.MarshalText()
		if err != nil {
			return nil, err
		}
		code := v.Code
		env = envelope{Type: typeKey, Kind: string(kind), Code: &code}
	case MouseEvent:
		kind, err := v.Kind.MarshalText()
		if err != nil {
			return nil, err
		}
		x, y := v.Position.X, v.Position.Y
		env = envelope{Type: typeMouse, Kind: string(kind), X: &x, Y: &y}
	default:
		return nil, fmt.Errorf("input: cannot encode %T", ev)
	}
	ms := at.UnixMilli()
	env.At = &ms
	return json.Marshal(env)
}

// Decode parses the JSON form produced by Encode or EncodeAt. Any recorded
// capture time is discarded.
func Decode(data []byte) (Event, error) {
	ev, _, err := DecodeAt(data)
	return ev, err
}

// DecodeAt parses an encoded event and its capture time. The time is zero
// when the line carries no "at" field.
func DecodeAt(data []byte) (Event, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("input: decode envelope: %w", err)
	}
	ev, err := env.event()
	if err != nil {
		return nil, time.Time{}, err
	}
	var at time.Time
	if env.At != nil {
		at = time.UnixMilli(*env.At)
	}
	return ev, at, nil
}

func (env envelope) event() (Event, error) {
	kind := env.Kind
	switch env.Type {
	case typeKey:
		var k KeyKind
		if err := k.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		if env.Code == nil {
			return nil, errors.New("input: key event without code")
		}
		return KeyEvent{Kind: k, Code: *env.Code}, nil
	case typeMouse:
		var k MouseEventKind
		if err := k.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		ev := MouseEvent{Kind: k}
		if env.X != nil {
			ev.Position.X = *env.X
		}
		if env.Y != nil {
			ev.Position.Y = *env.Y
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
}
