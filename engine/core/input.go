package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// ButtonMask is the set of mouse buttons held during a move.
type ButtonMask uint8

const (
	MASK_LEFT   ButtonMask = 1 << BUTTON_LEFT
	MASK_RIGHT  ButtonMask = 1 << BUTTON_RIGHT
	MASK_MIDDLE ButtonMask = 1 << BUTTON_MIDDLE
)

func (m ButtonMask) Has(b Button) bool {
	return m&(1<<b) != 0
}

// Key code definitions
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_1         KeyCode = 0x31
	KEY_2         KeyCode = 0x32
	KEY_3         KeyCode = 0x33
	KEY_4         KeyCode = 0x34
	KEY_5         KeyCode = 0x35
	KEY_6         KeyCode = 0x36
	KEY_7         KeyCode = 0x37
	KEY_8         KeyCode = 0x38
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_P         KeyCode = 0x50
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEY_F1        KeyCode = 0x70
	KEYS_MAX_KEYS KeyCode = 0xFF
)

// Mouse state structure
type MouseState struct {
	X       int32
	Y       int32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

func (m MouseState) Mask() ButtonMask {
	var mask ButtonMask
	for b := Button(0); b < BUTTON_MAX_BUTTONS; b++ {
		if m.Buttons[b] {
			mask |= 1 << b
		}
	}
	return mask
}

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input state structure that holds current and previous states for keyboard and mouse
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var inputState *InputState

func InputInitialize() error {
	inputState = &InputState{}
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputState = nil
	return nil
}

// InputUpdate copies current states to previous states. Called once per frame.
func InputUpdate(deltaTime float64) error {
	if inputState == nil {
		return nil
	}
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
	return nil
}

func InputIsKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	return inputState.KeyboardCurrent.Keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	if inputState == nil {
		return false
	}
	return inputState.KeyboardPrevious.Keys[key]
}

func InputProcessKey(key KeyCode, pressed bool) error {
	if inputState == nil || key >= KEYS_MAX_KEYS {
		return nil
	}
	// Only handle this if the state actually changed.
	if inputState.KeyboardCurrent.Keys[key] != pressed {
		inputState.KeyboardCurrent.Keys[key] = pressed

		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &KeyEvent{
				KeyCode: key,
			},
		})
	}
	return nil
}

func InputIsButtonDown(button Button) bool {
	if inputState == nil {
		return false
	}
	return inputState.MouseCurrent.Buttons[button]
}

func InputGetMousePosition() (int32, int32) {
	if inputState == nil {
		return 0, 0
	}
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

func InputProcessButton(button Button, pressed bool) error {
	if inputState == nil || button >= BUTTON_MAX_BUTTONS {
		return nil
	}
	if inputState.MouseCurrent.Buttons[button] != pressed {
		inputState.MouseCurrent.Buttons[button] = pressed

		code := EVENT_CODE_BUTTON_RELEASED
		if pressed {
			code = EVENT_CODE_BUTTON_PRESSED
		}
		EventFire(EventContext{
			Type: code,
			Data: &MouseEvent{
				Button:  button,
				Buttons: inputState.MouseCurrent.Mask(),
				PosX:    inputState.MouseCurrent.X,
				PosY:    inputState.MouseCurrent.Y,
			},
		})
	}
	return nil
}

func InputProcessMouseMove(x, y int32) error {
	if inputState == nil {
		return nil
	}
	// Only process if actually different
	if inputState.MouseCurrent.X != x || inputState.MouseCurrent.Y != y {
		inputState.MouseCurrent.X = x
		inputState.MouseCurrent.Y = y

		EventFire(EventContext{
			Type: EVENT_CODE_MOUSE_MOVED,
			Data: &MouseEvent{
				Buttons: inputState.MouseCurrent.Mask(),
				PosX:    x,
				PosY:    y,
			},
		})
	}
	return nil
}

func InputProcessMouseWheel(zDelta int8) error {
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{
			Scroll: zDelta,
		},
	})
	return nil
}
