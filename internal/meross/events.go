package meross

import "encoding/json"

// EventKind names a device lifecycle or telemetry notification.
type EventKind string

const (
	EventConnected EventKind = "connected"
	EventReconnect EventKind = "reconnect"
	EventClose     EventKind = "close"
	EventError     EventKind = "error"
	EventData      EventKind = "data"
)

// Event is delivered on a device's event stream and forwarded to the
// session's listener.
type Event struct {
	Kind       EventKind
	DeviceUUID string
	Namespace  string
	Payload    json.RawMessage
	Err        error
}

// Terminal reports whether the event means the device lost its data
// connection for good.
func (e Event) Terminal() bool {
	return e.Kind == EventClose || e.Kind == EventError
}

// deviceEventBuffer bounds each device's event stream. Events are dropped
// when a consumer falls behind.
const deviceEventBuffer = 64
