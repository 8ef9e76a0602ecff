package core

import (
	"context"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/disco"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/privacy"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

func (c *Context) handleIQ(ctx context.Context, iq *stanza.IQ) error {
	typ := iq.StanzaType()
	switch {
	case typ == stanza.TypeGet && iq.Version != nil:
		c.act("version", func(a Actions) error { return a.ReplyVersion(ctx, iq) })
	case typ == stanza.TypeGet && iq.DiscoInfo != nil:
		c.act("disco", func(a Actions) error { return a.ReplyDisco(ctx, iq) })
	case typ == stanza.TypeSet && iq.Roster != nil:
		return c.rosterPush(ctx, iq)
	case typ == stanza.TypeResult && iq.DiscoInfo != nil:
		return c.discoResult(iq)
	case typ == stanza.TypeResult && iq.Bookmarks() != nil:
		c.autojoinBookmarks(ctx, iq.Bookmarks())
	}
	return nil
}

// rosterPush applies a server roster push and acknowledges it.
func (c *Context) rosterPush(ctx context.Context, iq *stanza.IQ) error {
	if from := jidutil.UnescapeJID(iq.StanzaFrom()); from != "" {
		local := c.User()
		if local == nil || !jidutil.Equal(from, local.JID()) {
			c.log.Warn().Str("from", from).Msg("ignoring roster push from foreign address")
			return nil
		}
	}

	for _, item := range iq.Roster.Items {
		contact := roster.FromItem(item)
		if contact.Subscription == roster.SubscriptionRemove {
			if old, ok := c.Roster.Get(contact.JID); ok {
				contact = old
			}
			c.Roster.Remove(contact.JID)
			c.Bus.Publish(event.Event{Type: event.RosterRemoved, Data: event.ContactData{Contact: contact}})
			continue
		}

		_, known := c.Roster.Get(contact.JID)
		if err := c.Roster.Add(contact); err != nil {
			c.log.Warn().Err(err).Str("jid", contact.JID).Msg("skipping roster item")
			continue
		}
		stored, _ := c.Roster.Get(contact.JID)
		t := event.RosterAdded
		if known {
			t = event.RosterUpdated
		}
		c.Bus.Publish(event.Event{Type: t, Data: event.ContactData{Contact: stored}})
	}
	if iq.Roster.Ver != "" {
		c.Roster.SetVersion(iq.Roster.Ver)
	}

	c.act("ack", func(a Actions) error { return a.AckIQ(ctx, iq) })
	return nil
}

// RosterResult folds a roster fetch result into the store and sends the
// initial presence. A result without a query keeps the cached roster.
func (c *Context) RosterResult(ctx context.Context, iq *stanza.IQ) {
	switch {
	case iq.StanzaType() == stanza.TypeError:
		c.log.Warn().Str("id", iq.StanzaID()).Msg("roster fetch failed")
	case iq.Roster != nil:
		c.Roster.Clear()
		for _, item := range iq.Roster.Items {
			if err := c.Roster.Add(roster.FromItem(item)); err != nil {
				c.log.Warn().Err(err).Str("jid", item.JID).Msg("skipping roster item")
			}
		}
		c.Roster.SetVersion(iq.Roster.Ver)
	}

	c.Bus.Publish(event.Event{Type: event.RosterFetched, Data: event.RosterData{Contacts: c.Roster.All()}})
	c.act("presence", func(a Actions) error { return a.Presence(ctx) })
}

// PrivacyResult handles the reply to an ignore list fetch.
func (c *Context) PrivacyResult(ctx context.Context, iq *stanza.IQ) {
	if iq.StanzaType() == stanza.TypeError {
		condition := ""
		if iq.Error != nil {
			condition = iq.Error.Condition
		}
		if condition == "item-not-found" {
			c.act("reset ignore list", func(a Actions) error { return a.ResetIgnoreList(ctx) })
			c.act("activate ignore list", func(a Actions) error { return a.SetIgnoreListActive(ctx) })
		}
		c.Bus.Publish(event.Event{Type: event.PrivacyError, Data: event.PrivacyErrorData{Condition: condition}})
		return
	}

	jids := []string{}
	if list := iq.Privacy.List(privacy.Ignore); list != nil {
		for _, item := range list.Items {
			if item.Action == "deny" && item.Value != "" {
				jids = append(jids, jidutil.UnescapeJID(item.Value))
			}
		}
	}
	if u := c.User(); u != nil {
		u.Privacy().Replace(privacy.Ignore, jids)
	}
	c.act("activate ignore list", func(a Actions) error { return a.SetIgnoreListActive(ctx) })
	c.Bus.Publish(event.Event{Type: event.PrivacyLoaded, Data: event.PrivacyData{List: jids}})
}

func (c *Context) discoResult(iq *stanza.IQ) error {
	from := jidutil.UnescapeJID(iq.StanzaFrom())
	if from == "" {
		return nil
	}
	info := disco.FromQuery(iq.DiscoInfo)
	c.Disco.SetInfo(from, info)
	if !info.IsConference() {
		return nil
	}
	if _, err := jidutil.Decompose(from); err != nil {
		return err
	}
	room := c.Rooms.Create(from)
	if name := jidutil.UnescapeNode(info.Name()); !room.HasName() && name != "" {
		room.SetName(name)
	}
	return nil
}

func (c *Context) autojoinBookmarks(ctx context.Context, b *stanza.Bookmarks) {
	for _, conf := range b.Conferences {
		if !conf.AutoJoin() {
			continue
		}
		roomJID, password := jidutil.UnescapeJID(conf.JID), conf.Password
		c.act("autojoin", func(a Actions) error { return a.Join(ctx, roomJID, password) })
	}
}
