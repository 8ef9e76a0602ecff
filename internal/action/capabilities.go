package action

import (
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/muc"
)

// Capabilities offered by default.
const (
	CapPrivate  = "private"
	CapIgnore   = "ignore"
	CapUnignore = "unignore"
	CapKick     = "kick"
	CapBan      = "ban"
	CapSubject  = "subject"
)

// Target is what a capability predicate is evaluated against.
type Target struct {
	Room *muc.Room
	// User is the occupant the capability would act on.
	User *muc.ChatUser
	// Me is the local occupant of the room, or the account user.
	Me *muc.ChatUser
	// Local is the account user and owns the ignore list.
	Local *muc.ChatUser
}

// Self reports whether the target is the local occupant.
func (t Target) Self() bool {
	return t.User != nil && t.Me != nil && t.User.Nick() == t.Me.Nick()
}

// Ignored reports whether the target is on the ignore list.
func (t Target) Ignored() bool {
	return t.Local != nil && t.User != nil && t.Local.IsIgnored(t.User.JID())
}

// Predicate decides whether a capability applies.
type Predicate func(t Target) bool

type capability struct {
	name string
	pred Predicate
}

// Capabilities is an ordered registry of capability predicates.
type Capabilities struct {
	mu   sync.RWMutex
	caps []capability
}

// NewCapabilities returns a registry with the default capabilities.
func NewCapabilities() *Capabilities {
	c := &Capabilities{}
	notIgnored := func(t Target) bool { return !t.Self() && !t.Ignored() }
	moderate := func(t Target) bool {
		return !t.Self() && t.Me != nil && t.Me.IsModerator() && !t.User.IsModerator()
	}
	c.Register(CapPrivate, notIgnored)
	c.Register(CapIgnore, notIgnored)
	c.Register(CapUnignore, func(t Target) bool { return !t.Self() && t.Ignored() })
	c.Register(CapKick, moderate)
	c.Register(CapBan, moderate)
	c.Register(CapSubject, func(t Target) bool { return t.Self() && t.Me.IsModerator() })
	return c
}

// Register adds a capability, replacing the predicate of an existing one
// in place.
func (c *Capabilities) Register(name string, pred Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.caps {
		if c.caps[i].name == name {
			c.caps[i].pred = pred
			return
		}
	}
	c.caps = append(c.caps, capability{name: name, pred: pred})
}

// Unregister removes a capability.
func (c *Capabilities) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.caps {
		if c.caps[i].name == name {
			c.caps = append(c.caps[:i], c.caps[i+1:]...)
			return
		}
	}
}

// Evaluate returns the names of the capabilities that apply to t, in
// registration order.
func (c *Capabilities) Evaluate(t Target) []string {
	if t.User == nil {
		return nil
	}
	c.mu.RLock()
	caps := make([]capability, len(c.caps))
	copy(caps, c.caps)
	c.mu.RUnlock()

	var out []string
	for _, entry := range caps {
		if entry.pred(t) {
			out = append(out, entry.name)
		}
	}
	return out
}

// Allowed evaluates the capabilities for the occupant userJID of roomJID.
// It returns nil when the room or the occupant is unknown.
func (a *API) Allowed(roomJID, userJID string) []string {
	room := a.core.Rooms.Get(roomJID)
	if room == nil {
		return nil
	}
	local := a.core.User()
	me := room.User()
	if me == nil {
		me = local
	}
	return a.caps.Evaluate(Target{
		Room:  room,
		User:  room.Occupants().Get(userJID),
		Me:    me,
		Local: local,
	})
}
