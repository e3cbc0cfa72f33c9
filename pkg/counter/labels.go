package counter

// Counter labels. The set is fixed: nothing outside Labels is ever counted.
const (
	LabelLeftClicks   = "Left clicks"
	LabelRightClicks  = "Right clicks"
	LabelDoubleClicks = "Double clicks"
	LabelWheel        = "Wheel"
	LabelMouseMoves   = "Mouse moves"
	LabelKeystrokes   = "Keystrokes"
	LabelCtrlC        = "Ctrl+C"
	LabelCtrlX        = "Ctrl+X"
	LabelCtrlV        = "Ctrl+V"
	LabelCtrlZ        = "Ctrl+Z"
	LabelCtrlY        = "Ctrl+Y"
	LabelCtrlS        = "Ctrl+S"
	LabelAltTab       = "Alt+Tab"
	LabelBackspace    = "Backspace"
	LabelEnter        = "Enter"
	LabelEsc          = "Esc"
	LabelDelete       = "Delete"
	LabelTab          = "Tab"
)

// Labels lists every counter in display order: five mouse counters, the
// generic keystroke counter, six Ctrl combinations, Alt+Tab, and five
// special keys. Renderers enumerate exactly this list.
var Labels = []string{
	LabelLeftClicks,
	LabelRightClicks,
	LabelDoubleClicks,
	LabelWheel,
	LabelMouseMoves,
	LabelKeystrokes,
	LabelCtrlC,
	LabelCtrlX,
	LabelCtrlV,
	LabelCtrlZ,
	LabelCtrlY,
	LabelCtrlS,
	LabelAltTab,
	LabelBackspace,
	LabelEnter,
	LabelEsc,
	LabelDelete,
	LabelTab,
}

// IsLabel reports whether name belongs to the fixed label set.
func IsLabel(name string) bool {
	for _, l := range Labels {
		if l == name {
			return true
		}
	}
	return false
}

// LabelCount pairs a label with its current value.
type LabelCount struct {
	Label string `json:"label" yaml:"label"`
	Count uint64 `json:"count" yaml:"count"`
}
