package input

// Windows low-level hook message identifiers (the wParam of WH_KEYBOARD_LL
// and WH_MOUSE_LL callbacks).
const (
	WMKeyDown    = 0x0100
	WMKeyUp      = 0x0101
	WMSysKeyDown = 0x0104
	WMSysKeyUp   = 0x0105

	WMMouseMove   = 0x0200
	WMLButtonDown = 0x0201
	WMLButtonUp   = 0x0202
	WMRButtonDown = 0x0204
	WMRButtonUp   = 0x0205
	WMMButtonDown = 0x0207
	WMMButtonUp   = 0x0208
	WMMouseWheel  = 0x020A
)

var mouseMessages = map[uint32]MouseEventKind{
	WMMouseMove:   Move,
	WMLButtonDown: LeftDown,
	WMLButtonUp:   LeftUp,
	WMRButtonDown: RightDown,
	WMRButtonUp:   RightUp,
	WMMButtonDown: MiddleDown,
	WMMButtonUp:   MiddleUp,
	WMMouseWheel:  Wheel,
}

// FromKeyboardMessage converts a keyboard hook message. System-key messages
// (Alt held) count as ordinary presses and releases. Any other message is
// not classifiable and reports ok=false.
func FromKeyboardMessage(msg uint32, vk uint32) (KeyEvent, bool) {
	switch msg {
	case WMKeyDown, WMSysKeyDown:
		return KeyPress(KeyCode(vk)), true
	case WMKeyUp, WMSysKeyUp:
		return KeyRelease(KeyCode(vk)), true
	default:
		return KeyEvent{}, false
	}
}

// FromMouseMessage converts a mouse hook message at screen position (x, y).
// Unknown messages (horizontal wheel, X buttons, ...) report ok=false.
func FromMouseMessage(msg uint32, x, y int32) (MouseEvent, bool) {
	kind, ok := mouseMessages[msg]
	if !ok {
		return MouseEvent{}, false
	}
	return Mouse(kind, int(x), int(y)), true
}
