package core

import "sync"

type EventContext struct {
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		B bool
		S string
		// Payload carries values that do not fit the fixed fields.
		Payload interface{}
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// Window minimized, restored or otherwise hidden.
	/* Context usage:
	 * bool occluded = data.B;
	 */
	EVENT_CODE_OCCLUDED SystemEventCode = 0x09

	// The configuration file changed on disk and was decoded.
	/* Context usage:
	 * *config.Config = data.Payload;
	 */
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x0A

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

/**
 * Event system internal state.
 */
var (
	eventMu     sync.Mutex
	registered  map[SystemEventCode][]*registeredEvent
	initialized bool
)

func EventInitialize() bool {
	eventMu.Lock()
	defer eventMu.Unlock()
	if initialized {
		return false
	}
	registered = make(map[SystemEventCode][]*registeredEvent)
	initialized = true
	return true
}

// EventShutdown drops every registration. Listeners are owned by their callers.
func EventShutdown() {
	eventMu.Lock()
	defer eventMu.Unlock()
	registered = nil
	initialized = false
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	eventMu.Lock()
	defer eventMu.Unlock()
	if !initialized || code < 0 || code >= MAX_MESSAGE_CODES {
		return false
	}
	for _, e := range registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	registered[code] = append(registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 */
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	eventMu.Lock()
	defer eventMu.Unlock()
	if !initialized {
		return false
	}
	events := registered[code]
	for i, e := range events {
		if e.listener == listener {
			registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	eventMu.Lock()
	if !initialized {
		eventMu.Unlock()
		return false
	}
	// copy so callbacks may register or unregister
	events := append([]*registeredEvent(nil), registered[code]...)
	eventMu.Unlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}
