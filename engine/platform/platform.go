package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/anima-shapes/engine/core"
)

var startTime float64 = 0

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetMouseButtonCallback(mouseButtonCallback)
	p.Window.SetCursorPosCallback(cursorPosCallback)
	p.Window.SetScrollCallback(scrollCallback)
	p.Window.SetFramebufferSizeCallback(framebufferSizeCallback)
	p.Window.SetCloseCallback(closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	startTime = glfw.GetTime()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the window system. It returns false once the window
// was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// GetRequiredExtensionNames lists the instance extensions the window surface
// needs.
func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// FramebufferSize returns the drawable size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func GetAbsoluteTime() float64 {
	return glfw.GetTime() - startTime
}

var keyTable = map[glfw.Key]core.KeyCode{
	glfw.KeyBackspace: core.KEY_BACKSPACE,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyA:         core.KEY_A,
	glfw.KeyD:         core.KEY_D,
	glfw.KeyP:         core.KEY_P,
	glfw.KeyR:         core.KEY_R,
	glfw.KeyS:         core.KEY_S,
	glfw.KeyW:         core.KEY_W,
	glfw.KeyF1:        core.KEY_F1,
}

// TranslateKey maps a glfw key to the engine key code. Digits map directly.
func TranslateKey(key glfw.Key) (core.KeyCode, bool) {
	if key >= glfw.Key0 && key <= glfw.Key9 {
		return core.KEY_0 + core.KeyCode(key-glfw.Key0), true
	}
	code, ok := keyTable[key]
	return code, ok
}

// TranslateButton maps a glfw mouse button to the engine button.
func TranslateButton(button glfw.MouseButton) (core.Button, bool) {
	switch button {
	case glfw.MouseButtonLeft:
		return core.BUTTON_LEFT, true
	case glfw.MouseButtonRight:
		return core.BUTTON_RIGHT, true
	case glfw.MouseButtonMiddle:
		return core.BUTTON_MIDDLE, true
	}
	return core.BUTTON_MAX_BUTTONS, false
}

// ScrollDelta folds a glfw scroll offset into the -1/0/1 wheel step.
func ScrollDelta(yoff float64) int8 {
	switch {
	case yoff > 0:
		return 1
	case yoff < 0:
		return -1
	}
	return 0
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code, ok := TranslateKey(key)
	if !ok {
		return
	}
	if err := core.InputProcessKey(code, action == glfw.Press); err != nil {
		core.LogWarn("key %d dropped: %s", code, err)
	}
}

func mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	b, ok := TranslateButton(button)
	if !ok {
		return
	}
	if err := core.InputProcessButton(b, action == glfw.Press); err != nil {
		core.LogWarn("button %d dropped: %s", b, err)
	}
}

func cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	if err := core.InputProcessMouseMove(int32(xpos), int32(ypos)); err != nil {
		core.LogWarn("mouse move dropped: %s", err)
	}
}

func scrollCallback(w *glfw.Window, xoff, yoff float64) {
	if delta := ScrollDelta(yoff); delta != 0 {
		if err := core.InputProcessMouseWheel(delta); err != nil {
			core.LogWarn("mouse wheel dropped: %s", err)
		}
	}
}

func framebufferSizeCallback(w *glfw.Window, width, height int) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{
			WindowWidth:  uint32(width),
			WindowHeight: uint32(height),
		},
	})
}

func closeCallback(w *glfw.Window) {
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_APPLICATION_QUIT,
	})
}
