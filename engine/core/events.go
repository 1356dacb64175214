package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED SystemEventCode = 0x04
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06
	// Mouse wheel. Data: *MouseEvent
	EVENT_CODE_MOUSE_WHEEL SystemEventCode = 0x07
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// A watched asset changed on disk. Data: *AssetEvent
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button  Button
	Buttons ButtonMask
	PosX    int32
	PosY    int32
	Scroll  int8
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mu         sync.Mutex
	registered map[SystemEventCode][]FnOnEvent
	queue      []EventContext
}

var eventState *eventSystemState

func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
	return true
}

func EventSystemShutdown() error {
	eventState = nil
	return nil
}

// EventRegister adds a listener for code. Listeners run in registration order.
func EventRegister(code SystemEventCode, onEvent FnOnEvent) bool {
	if eventState == nil || onEvent == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventUnregisterAll drops every listener of code.
func EventUnregisterAll(code SystemEventCode) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	if len(eventState.registered[code]) == 0 {
		return false
	}
	delete(eventState.registered, code)
	return true
}

// EventFire queues an event. It is delivered by the next ProcessEvents call
// on the thread that owns the frame loop. Returns false when nobody listens.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	if len(eventState.registered[context.Type]) == 0 {
		return false
	}
	eventState.queue = append(eventState.queue, context)
	return true
}

// ProcessEvents delivers all queued events, including the ones fired by
// listeners while draining.
func ProcessEvents() int {
	if eventState == nil {
		return 0
	}
	delivered := 0
	for {
		eventState.mu.Lock()
		if len(eventState.queue) == 0 {
			eventState.mu.Unlock()
			return delivered
		}
		context := eventState.queue[0]
		eventState.queue = eventState.queue[1:]
		listeners := append([]FnOnEvent(nil), eventState.registered[context.Type]...)
		eventState.mu.Unlock()

		for _, l := range listeners {
			l(context)
		}
		delivered++
	}
}
