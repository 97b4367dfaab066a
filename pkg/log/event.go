package log

import "time"

// Event represents one captured protocol event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Label is the scenario-assigned connection label (e.g. "A", "CTRL").
	Label string `cbor:"3,keyasint,omitempty"`

	// Direction indicates data flow.
	Direction Direction `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the server address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Scenario is the name of the scenario that owned the connection.
	Scenario string `cbor:"7,keyasint,omitempty"`

	// Line is the line text without terminator (CategoryLine), the raw
	// fragment (CategoryPartial) or a short state description.
	Line string `cbor:"8,keyasint,omitempty"`

	// Size is the number of bytes written or read for this event.
	Size int `cbor:"9,keyasint,omitempty"`

	// Error is the error text for CategoryError events.
	Error string `cbor:"10,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the server.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the server.
	DirectionOut Direction = 1
	// DirectionLocal indicates a local action with no data on the wire.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection converts a case-insensitive name to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "in", "IN":
		return DirectionIn, true
	case "out", "OUT":
		return DirectionOut, true
	case "local", "LOCAL":
		return DirectionLocal, true
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLine indicates a complete protocol line.
	CategoryLine Category = 0
	// CategoryPartial indicates a write without terminator.
	CategoryPartial Category = 1
	// CategoryState indicates a connection lifecycle change.
	CategoryState Category = 2
	// CategoryError indicates a transport error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLine:
		return "LINE"
	case CategoryPartial:
		return "PARTIAL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory converts a case-insensitive name to a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "line", "LINE":
		return CategoryLine, true
	case "partial", "PARTIAL":
		return CategoryPartial, true
	case "state", "STATE":
		return CategoryState, true
	case "error", "ERROR":
		return CategoryError, true
	}
	return 0, false
}

// Connection lifecycle descriptions used in CategoryState events.
const (
	StateConnected  = "connected"
	StateClosed     = "closed"
	StateAborted    = "aborted"
	StatePeerClosed = "peer-closed"
	StatePaused     = "paused"
	StateResumed    = "resumed"
)
