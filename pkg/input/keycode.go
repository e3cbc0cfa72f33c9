package input

import "fmt"

// KeyCode is a virtual key identifier. Values follow the Windows virtual-key
// numbering, which the hook reports directly; other platforms map onto it.
type KeyCode uint32

// Virtual keys the counter engine distinguishes. Ctrl and Alt are the
// left-hand variants reported by the low-level keyboard hook.
const (
	KeyBackspace KeyCode = 8
	KeyTab       KeyCode = 9
	KeyEnter     KeyCode = 13
	KeyEsc       KeyCode = 27
	KeyDelete    KeyCode = 46
	KeyC         KeyCode = 67
	KeyS         KeyCode = 83
	KeyV         KeyCode = 86
	KeyX         KeyCode = 88
	KeyY         KeyCode = 89
	KeyZ         KeyCode = 90
	KeyShift     KeyCode = 160
	KeyCtrl      KeyCode = 162
	KeyAlt       KeyCode = 164
)

var keyNames = map[KeyCode]string{
	KeyBackspace: "Backspace",
	KeyTab:       "Tab",
	KeyEnter:     "Enter",
	KeyEsc:       "Esc",
	KeyDelete:    "Delete",
	KeyShift:     "Shift",
	KeyCtrl:      "Ctrl",
	KeyAlt:       "Alt",
}

// String returns a readable name. Letters and digits print as themselves,
// unnamed codes as "VK_<n>".
func (c KeyCode) String() string {
	if name, ok := keyNames[c]; ok {
		return name
	}
	if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		return string(rune(c))
	}
	return fmt.Sprintf("VK_%d", uint32(c))
}
