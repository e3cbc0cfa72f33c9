// Package counter classifies input events into the fixed label set and keeps
// the running totals.
//
// State is the plain aggregate: counters, modifier latches, and the
// timestamps used for double-click detection and debouncing. Its methods
// are not synchronised. Counter wraps a State behind a read-write lock for
// use from concurrent hook callbacks and background readers.
package counter

import (
	"time"

	"github.com/planet0104/keyboard-counter/pkg/input"
)

// Classification thresholds.
const (
	DoubleClickWindow = 500 * time.Millisecond
	DoubleClickSlop   = 4 // pixels, exclusive, per axis
	WheelDebounce     = 800 * time.Millisecond
	MoveDebounce      = 800 * time.Millisecond
)

var ctrlCombos = map[input.KeyCode]string{
	input.KeyC: LabelCtrlC,
	input.KeyX: LabelCtrlX,
	input.KeyV: LabelCtrlV,
	input.KeyZ: LabelCtrlZ,
	input.KeyY: LabelCtrlY,
	input.KeyS: LabelCtrlS,
}

// Click records where and when the left button last went down.
type Click struct {
	At       int64       `json:"at"` // unix milliseconds
	Position input.Point `json:"position"`
}

// Day is the per-day mirror of the cumulative counters. Date is the local
// calendar date as yyyymmdd.
type Day struct {
	Date   int               `json:"date"`
	Counts map[string]uint64 `json:"counts"`
}

// State is the persisted aggregate. All timestamps are unix milliseconds.
type State struct {
	StartedAt     int64             `json:"started_at"`
	Counts        map[string]uint64 `json:"counts"`
	CtrlDown      bool              `json:"ctrl_down"`
	AltDown       bool              `json:"alt_down"`
	LastLeftClick Click             `json:"last_left_click"`
	LastWheelAt   int64             `json:"last_wheel_at"`
	LastMoveAt    int64             `json:"last_move_at"`
	Today         Day               `json:"today"`
}

// NewState returns an empty aggregate that started at now.
func NewState(now time.Time) State {
	return State{
		StartedAt: now.UnixMilli(),
		Counts:    make(map[string]uint64, len(Labels)),
		Today: Day{
			Date:   dateKey(now),
			Counts: make(map[string]uint64, len(Labels)),
		},
	}
}

// Receive classifies ev at time now and updates the counters. Events that
// match no rule leave the state untouched.
func (s *State) Receive(ev input.Event, now time.Time) {
	s.rollDay(now)

	switch e := ev.(type) {
	case input.KeyEvent:
		switch e.Kind {
		case input.Press:
			s.keyPress(e.Code)
		case input.Release:
			s.keyRelease(e.Code)
		}
	case input.MouseEvent:
		s.mouse(e, now.UnixMilli())
	}
}

func (s *State) keyPress(code input.KeyCode) {
	s.AddCount(LabelKeystrokes)

	if code == input.KeyCtrl {
		s.CtrlDown = true
	}
	if code == input.KeyAlt {
		s.AltDown = true
	}
	if code == input.KeyBackspace {
		s.AddCount(LabelBackspace)
	}
	if code == input.KeyEnter {
		s.AddCount(LabelEnter)
	}
	if code == input.KeyDelete {
		s.AddCount(LabelDelete)
	}
	if code == input.KeyEsc {
		s.AddCount(LabelEsc)
	}
	if code == input.KeyTab {
		s.AddCount(LabelTab)
		if s.AltDown {
			s.AddCount(LabelAltTab)
		}
	}

	if s.CtrlDown {
		if label, ok := ctrlCombos[code]; ok {
			s.AddCount(label)
		}
	}
}

func (s *State) keyRelease(code input.KeyCode) {
	if code == input.KeyCtrl {
		s.CtrlDown = false
	} else if code == input.KeyAlt {
		s.AltDown = false
	}
}

func (s *State) mouse(e input.MouseEvent, now int64) {
	switch e.Kind {
	case input.LeftDown:
		s.AddCount(LabelLeftClicks)
		last := s.LastLeftClick
		if now-last.At < DoubleClickWindow.Milliseconds() &&
			abs(e.Position.X-last.Position.X) < DoubleClickSlop &&
			abs(e.Position.Y-last.Position.Y) < DoubleClickSlop {
			s.AddCount(LabelDoubleClicks)
		}
		// Every click re-baselines, including one that completed a double.
		s.LastLeftClick = Click{At: now, Position: e.Position}
	case input.RightDown:
		s.AddCount(LabelRightClicks)
	case input.Wheel:
		if now-s.LastWheelAt > WheelDebounce.Milliseconds() {
			s.LastWheelAt = now
			s.AddCount(LabelWheel)
		}
	case input.Move:
		if now-s.LastMoveAt > MoveDebounce.Milliseconds() {
			s.LastMoveAt = now
			s.AddCount(LabelMouseMoves)
		}
	}
}

// AddCount increments label by one in both the cumulative and the per-day
// tables, inserting it when absent.
func (s *State) AddCount(label string) {
	if s.Counts == nil {
		s.Counts = make(map[string]uint64, len(Labels))
	}
	s.Counts[label]++

	if s.Today.Counts == nil {
		s.Today.Counts = make(map[string]uint64, len(Labels))
	}
	s.Today.Counts[label]++
}

// Clear sets every counter to zero. StartedAt, the modifier latches and the
// debounce timestamps are left as they are.
func (s *State) Clear() {
	s.Counts = zeroed(s.Counts)
	s.Today.Counts = zeroed(s.Today.Counts)
}

func zeroed(m map[string]uint64) map[string]uint64 {
	if m == nil {
		m = make(map[string]uint64, len(Labels))
	}
	for k := range m {
		m[k] = 0
	}
	for _, l := range Labels {
		m[l] = 0
	}
	return m
}

// rollDay starts a fresh per-day table when now falls on a new local date.
func (s *State) rollDay(now time.Time) {
	if d := dateKey(now); d != s.Today.Date {
		s.Today = Day{Date: d, Counts: make(map[string]uint64, len(Labels))}
	}
}

// Count returns the cumulative value of label, zero when absent.
func (s State) Count(label string) uint64 {
	return s.Counts[label]
}

// View returns the cumulative counters in display order.
func (s State) View() []LabelCount {
	return view(s.Counts)
}

// TodayView returns the per-day counters in display order.
func (s State) TodayView() []LabelCount {
	return view(s.Today.Counts)
}

// TodayViewAt is TodayView as seen at now: when no event has arrived yet on
// now's date, every counter reads zero.
func (s State) TodayViewAt(now time.Time) []LabelCount {
	if dateKey(now) != s.Today.Date {
		return view(nil)
	}
	return view(s.Today.Counts)
}

func view(m map[string]uint64) []LabelCount {
	out := make([]LabelCount, len(Labels))
	for i, l := range Labels {
		out[i] = LabelCount{Label: l, Count: m[l]}
	}
	return out
}

// Empty reports whether every cumulative counter is zero.
func (s State) Empty() bool {
	for _, v := range s.Counts {
		if v != 0 {
			return false
		}
	}
	return true
}

// Since returns StartedAt as a time.
func (s State) Since() time.Time {
	return time.UnixMilli(s.StartedAt)
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Counts = cloneCounts(s.Counts)
	out.Today.Counts = cloneCounts(s.Today.Counts)
	return out
}

func cloneCounts(m map[string]uint64) map[string]uint64 {
	if m == nil {
		return nil
	}
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dateKey(t time.Time) int {
	y, m, d := t.Local().Date()
	return y*10000 + int(m)*100 + d
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
