// Package core interprets incoming stanzas into room, occupant and contact
// state and publishes what changed on the event bus.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/disco"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// Actions is the outgoing side the core triggers on its own: session
// bootstrap, roster acknowledgements and replies.
type Actions interface {
	Roster(ctx context.Context) error
	EnableCarbons(ctx context.Context) error
	Autojoin(ctx context.Context) error
	GetIgnoreList(ctx context.Context) error
	ResetIgnoreList(ctx context.Context) error
	SetIgnoreListActive(ctx context.Context) error
	Presence(ctx context.Context) error
	Join(ctx context.Context, roomJID, password string) error
	ReplyVersion(ctx context.Context, iq *stanza.IQ) error
	ReplyDisco(ctx context.Context, iq *stanza.IQ) error
	AckIQ(ctx context.Context, iq *stanza.IQ) error
}

// Context owns the client state. Handle and ConnectionChanged are
// serialized by one processing mutex.
type Context struct {
	mu sync.Mutex

	Roster  *roster.Manager
	Rooms   *muc.Manager
	Disco   *disco.Cache
	Tracker *Tracker
	Bus     *event.Bus

	userMu  sync.RWMutex
	user    *muc.ChatUser
	actions Actions

	handlers *handlerRegistry
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a context around bus.
func New(bus *event.Bus, log zerolog.Logger) *Context {
	return &Context{
		Roster:   roster.NewManager(),
		Rooms:    muc.NewManager(),
		Disco:    disco.NewCache(),
		Tracker:  NewTracker(bus, log),
		Bus:      bus,
		handlers: newHandlerRegistry(),
		log:      log,
		now:      time.Now,
	}
}

// LoadRoster folds cached roster items into the store ahead of the first
// fetch and publishes roster.loaded.
func (c *Context) LoadRoster(version string, items []roster.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		if err := c.Roster.Add(item); err != nil {
			c.log.Warn().Err(err).Str("jid", item.JID).Msg("skipping cached roster item")
		}
	}
	c.Roster.SetVersion(version)
	c.Bus.Publish(event.Event{Type: event.RosterLoaded, Data: event.RosterData{Contacts: c.Roster.All()}})
}

// SetActions attaches the outgoing side.
func (c *Context) SetActions(a Actions) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.actions = a
}

func (c *Context) getActions() Actions {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	return c.actions
}

// User returns the local user, nil before a login.
func (c *Context) User() *muc.ChatUser {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	return c.user
}

// SetUser replaces the local user.
func (c *Context) SetUser(u *muc.ChatUser) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.user = u
}

// Reset drops rooms, contacts and disco state before a fresh connect or
// attach.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Roster.Clear()
	c.Rooms.Clear()
	c.Disco.Clear()
}

// Handle processes one incoming stanza to completion. Malformed input is
// logged and returned; the stanza is dropped.
func (c *Context) Handle(ctx context.Context, s stanza.Stanza) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch v := s.(type) {
	case *stanza.Presence:
		err = c.handlePresence(v)
	case *stanza.Message:
		err = c.handleMessage(v)
	case *stanza.IQ:
		err = c.handleIQ(ctx, v)
	default:
		err = fmt.Errorf("%w: %T", stanza.ErrUnknownStanza, s)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("stanza", s.StanzaName()).Str("from", s.StanzaFrom()).Msg("dropping stanza")
	}

	c.handlers.dispatch(ctx, s)
	return err
}

func (c *Context) act(name string, fn func(Actions) error) {
	a := c.getActions()
	if a == nil {
		c.log.Warn().Str("action", name).Msg("no action handler attached")
		return
	}
	if err := fn(a); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn().Err(err).Str("action", name).Msg("action failed")
	}
}

// AddHandler registers fn for stanzas matching m. A handler returning
// false is removed.
func (c *Context) AddHandler(m Matcher, fn HandlerFunc) HandlerRef {
	return c.handlers.add(m, fn)
}

// DeleteHandler removes a handler.
func (c *Context) DeleteHandler(ref HandlerRef) {
	c.handlers.remove(ref)
}
