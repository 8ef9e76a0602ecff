package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
)

// Status is the connection status reported by the transport.
type Status int

const (
	StatusError Status = iota
	StatusConnecting
	StatusConnFail
	StatusAuthenticating
	StatusAuthFail
	StatusConnected
	StatusDisconnected
	StatusDisconnecting
	StatusAttached
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusConnecting:
		return "connecting"
	case StatusConnFail:
		return "conn-failed"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthFail:
		return "auth-failed"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Tracker mirrors the transport status and republishes every change.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	bus    *event.Bus
	log    zerolog.Logger
}

// NewTracker creates a tracker in the disconnected state.
func NewTracker(bus *event.Bus, log zerolog.Logger) *Tracker {
	return &Tracker{status: StatusDisconnected, bus: bus, log: log}
}

// Set records s and publishes it. It returns false when a subscriber
// stopped delivery.
func (t *Tracker) Set(s Status) bool {
	t.mu.Lock()
	prev := t.status
	t.status = s
	t.mu.Unlock()

	t.log.Info().Str("status", s.String()).Str("previous", prev.String()).Msg("connection status")
	return t.bus.Publish(event.Event{Type: event.ConnectionStatus, Data: event.ConnectionStatusData{Status: s.String()}})
}

// Status returns the last reported status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ConnectionChanged is the transport status callback. localJID is the
// bound session address when known.
func (c *Context) ConnectionChanged(ctx context.Context, status Status, localJID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Tracker.Set(status)

	switch status {
	case StatusConnected:
		localJID = jidutil.UnescapeJID(localJID)
		if u := c.User(); u == nil {
			c.SetUser(muc.NewChatUser(localJID, jidutil.Node(localJID), muc.AffiliationNone, muc.RoleNone, ""))
		} else if u.JID() == "" {
			u.SetJID(localJID)
		}
		c.startSession(ctx)
	case StatusAttached:
		c.startSession(ctx)
	}
}

func (c *Context) startSession(ctx context.Context) {
	c.act("roster", func(a Actions) error { return a.Roster(ctx) })
	c.act("carbons", func(a Actions) error { return a.EnableCarbons(ctx) })
	c.act("autojoin", func(a Actions) error { return a.Autojoin(ctx) })
	c.act("ignore list", func(a Actions) error { return a.GetIgnoreList(ctx) })
}
