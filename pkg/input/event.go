// Package input defines the closed set of keyboard and mouse events the
// counter engine classifies, plus the boundary decoders that turn Windows
// low-level hook messages into those events.
//
// Event values are plain data. The only behaviour here is construction,
// equality (all types are comparable), and a stable JSON encoding used by
// replay files, the daemon IPC channel, and tests.
package input

import "fmt"

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// String returns "(x,y)".
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Event is either a KeyEvent or a MouseEvent. The set is closed: no type
// outside this package implements it.
type Event interface {
	isEvent()
	String() string
}

// KeyKind distinguishes key presses from key releases.
type KeyKind uint8

const (
	Press KeyKind = iota + 1
	Release
)

var keyKindNames = map[KeyKind]string{
	Press:   "press",
	Release: "release",
}

func (k KeyKind) String() string {
	if name, ok := keyKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KeyKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k KeyKind) MarshalText() ([]byte, error) {
	name, ok := keyKindNames[k]
	if !ok {
		return nil, fmt.Errorf("input: invalid key kind %d", uint8(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *KeyKind) UnmarshalText(text []byte) error {
	for kind, name := range keyKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("input: unknown key kind %q", text)
}

// KeyEvent is a single key transition.
type KeyEvent struct {
	Kind KeyKind
	Code KeyCode
}

func (KeyEvent) isEvent() {}

func (e KeyEvent) String() string {
	return fmt.Sprintf("key %s %s", e.Kind, e.Code)
}

// KeyPress builds a press event for code.
func KeyPress(code KeyCode) KeyEvent {
	return KeyEvent{Kind: Press, Code: code}
}

// KeyRelease builds a release event for code.
func KeyRelease(code KeyCode) KeyEvent {
	return KeyEvent{Kind: Release, Code: code}
}

// MouseEventKind enumerates the mouse transitions the hook reports.
type MouseEventKind uint8

const (
	Move MouseEventKind = iota + 1
	LeftDown
	LeftUp
	RightDown
	RightUp
	MiddleDown
	MiddleUp
	Wheel
)

var mouseKindNames = map[MouseEventKind]string{
	Move:       "move",
	LeftDown:   "left_down",
	LeftUp:     "left_up",
	RightDown:  "right_down",
	RightUp:    "right_up",
	MiddleDown: "middle_down",
	MiddleUp:   "middle_up",
	Wheel:      "wheel",
}

func (k MouseEventKind) String() string {
	if name, ok := mouseKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MouseEventKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k MouseEventKind) MarshalText() ([]byte, error) {
	name, ok := mouseKindNames[k]
	if !ok {
		return nil, fmt.Errorf("input: invalid mouse event kind %d", uint8(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MouseEventKind) UnmarshalText(text []byte) error {
	for kind, name := range mouseKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("input: unknown mouse event kind %q", text)
}

// MouseEvent is a mouse transition at a screen position.
type MouseEvent struct {
	Kind     MouseEventKind
	Position Point
}

func (MouseEvent) isEvent() {}

func (e MouseEvent) String() string {
	return fmt.Sprintf("mouse %s %s", e.Kind, e.Position)
}

// Mouse builds a mouse event of kind at (x, y).
func Mouse(kind MouseEventKind, x, y int) MouseEvent {
	return MouseEvent{Kind: kind, Position: Pt(x, y)}
}
