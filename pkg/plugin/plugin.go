package plugin

import (
	"time"
)

// Sink is the interface that all plugins must implement. A sink sees
// every event the engine publishes.
type Sink interface {
	// Name returns the plugin name
	Name() string

	// Version returns the plugin version
	Version() string

	// Description returns a short description
	Description() string

	// Init configures the plugin before the first event
	Init(cfg Config) error

	// Deliver handles one event. Setting Veto on a vetoable event stops
	// it from reaching later subscribers.
	Deliver(e Event) (Reply, error)

	// Stop stops the plugin
	Stop() error
}

// Event is the flattened form of an engine event. Fields that do not
// apply to the event type are empty.
type Event struct {
	Type     string
	Vetoable bool

	RoomJID  string
	RoomName string
	From     string
	Nick     string
	Body     string
	// Action is the occupant action for room presence, the subtype for
	// messages and the status for connection events.
	Action    string
	Reason    string
	Timestamp time.Time

	// Extra carries type specific values without a dedicated field.
	Extra map[string]string
}

// Reply is a sink's answer to an event.
type Reply struct {
	Veto bool
}

// Metadata contains plugin metadata
type Metadata struct {
	Name        string
	Version     string
	Description string
}

// Config contains plugin configuration
type Config struct {
	Enabled bool
	Options map[string]string
}
