package core

import (
	"strings"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// handleMessage routes a message by type.
func (c *Context) handleMessage(m *stanza.Message) error {
	if m.Sent != nil || m.Received != nil {
		return c.processMessage(m)
	}

	typ := string(m.MessageType())
	switch typ {
	case stanza.TypeNormal:
		invite := findInvite(m)
		if invite != nil {
			c.Bus.Publish(event.Event{Type: event.Invite, Data: *invite})
		}
		c.Bus.Publish(event.Event{Type: event.NormalMessage, Data: event.StanzaData{Stanza: m}})
		if invite == nil && m.Body != "" {
			return c.processMessage(m)
		}
		return nil
	case stanza.TypeHeadline:
		c.publishServerMessage(m, typ)
		return nil
	case stanza.TypeGroupchat, stanza.TypeChat, stanza.TypeError:
		if jidutil.IsDomain(m.StanzaFrom()) {
			c.publishServerMessage(m, typ)
			return nil
		}
		return c.processMessage(m)
	default:
		c.Bus.Publish(event.Event{Type: event.OtherMessage, Data: event.StanzaData{Stanza: m}})
		return nil
	}
}

func (c *Context) publishServerMessage(m *stanza.Message, typ string) {
	if m.StanzaTo() == "" {
		c.Bus.Publish(event.Event{Type: event.AdminMessage, Data: event.AdminMessageData{Type: typ, Message: m.Body}})
		return
	}
	c.Bus.Publish(event.Event{Type: event.ServerMessage, Data: event.ServerMessageData{
		Type:    typ,
		Subject: m.Subject,
		Message: m.Body,
	}})
}

// findInvite returns a direct invitation if there is one, else a mediated
// one, else nil.
func findInvite(m *stanza.Message) *event.InviteData {
	var invite *event.InviteData
	if m.MUC != nil && len(m.MUC.Invites) > 0 {
		inv := m.MUC.Invites[0]
		invite = &event.InviteData{
			RoomJID:  jidutil.UnescapeJID(m.StanzaFrom()),
			From:     jidutil.UnescapeJID(inv.From),
			Reason:   inv.Reason,
			Password: m.MUC.Password,
		}
		if inv.Continue != nil {
			invite.ContinuedThread = inv.Continue.Thread
		}
	}
	if m.Conference != nil {
		invite = &event.InviteData{
			RoomJID:         jidutil.UnescapeJID(m.Conference.JID),
			From:            jidutil.UnescapeJID(m.StanzaFrom()),
			Reason:          m.Conference.Reason,
			Password:        m.Conference.Password,
			ContinuedThread: m.Conference.Thread,
		}
	}
	return invite
}

// processMessage classifies a chat, groupchat, error or carbon message and
// publishes one message event for it.
func (c *Context) processMessage(m *stanza.Message) error {
	msg := m
	carbon := false
	partner := jidutil.UnescapeJID(m.StanzaFrom())
	var forwardedDelay *stanza.Delay

	switch {
	case m.Sent != nil && m.Sent.Forwarded.Message != nil:
		msg = m.Sent.Forwarded.Message
		partner = jidutil.UnescapeJID(msg.StanzaTo())
		forwardedDelay = m.Sent.Forwarded.Delay
		carbon = true
	case m.Received != nil && m.Received.Forwarded.Message != nil:
		msg = m.Received.Forwarded.Message
		partner = jidutil.UnescapeJID(msg.StanzaFrom())
		forwardedDelay = m.Received.Forwarded.Delay
		carbon = true
	case m.Sent != nil || m.Received != nil:
		c.log.Debug().Str("from", partner).Msg("dropping empty carbon")
		return nil
	}
	if carbon {
		outer := jidutil.UnescapeJID(m.StanzaFrom())
		if local := c.User(); local != nil && local.JID() != "" && outer != "" && !jidutil.Equal(outer, local.JID()) {
			c.log.Warn().Str("from", m.StanzaFrom()).Msg("dropping carbon from foreign address")
			return nil
		}
	}

	parts, err := jidutil.Decompose(partner)
	if err != nil {
		return err
	}
	from := jidutil.UnescapeJID(msg.StanzaFrom())
	typ := string(msg.MessageType())
	log := c.log.With().Str("from", from).Str("type", typ).Logger()

	roomJID := parts.Bare()
	roomName := parts.Node
	name := ""
	var message *event.ChatMessage

	switch {
	case typ == stanza.TypeGroupchat && msg.Subject != "":
		name = jidutil.UnescapeNode(jidutil.Resource(from))
		if name == "" {
			name = jidutil.Node(from)
		}
		if room := c.Rooms.Get(roomJID); room != nil {
			roomName = room.Name()
			room.SetSubject(msg.Subject, name)
		}
		message = &event.ChatMessage{
			From: jidutil.Bare(from),
			Name: name,
			Body: msg.Subject,
			Type: event.MessageSubject,
		}

	case typ == stanza.TypeError:
		if msg.Error == nil || msg.Error.Text == "" {
			break
		}
		roomJID = partner
		message = &event.ChatMessage{
			From: from,
			Type: event.MessageInfo,
			Body: msg.Error.Text,
		}

	case msg.Body != "":
		if typ == stanza.TypeChat || typ == stanza.TypeNormal {
			room := c.Rooms.Get(roomJID)
			isNoConferenceRoomJID := room == nil
			if isNoConferenceRoomJID {
				if contact, ok := c.Roster.Get(roomJID); ok {
					roomName = contact.DisplayName()
				}
				name = c.senderName(from)
			} else {
				roomJID = partner
				name = c.occupantName(room.Occupants().Get(from), from)
				roomName = name
			}
			message = &event.ChatMessage{
				From:                  from,
				Name:                  name,
				Body:                  msg.Body,
				Type:                  typ,
				IsNoConferenceRoomJID: isNoConferenceRoomJID,
			}
		} else if parts.Resource != "" {
			room := c.Rooms.Get(roomJID)
			if room == nil {
				log.Debug().Msg("dropping message for unknown room")
				return nil
			}
			roomName = room.Name()
			name = jidutil.UnescapeNode(parts.Resource)
			if sender := room.Occupants().Get(from); sender != nil && sender != room.User() {
				name = sender.Name(c.Roster)
			}
			message = &event.ChatMessage{
				From: roomJID,
				Name: name,
				Body: msg.Body,
				Type: typ,
			}
		} else {
			if c.Rooms.Get(partner) == nil {
				log.Debug().Msg("dropping message for unknown room")
				return nil
			}
			roomName = ""
			message = &event.ChatMessage{
				From: roomJID,
				Body: msg.Body,
				Type: event.MessageInfo,
			}
		}
		if msg.HTML != nil {
			message.XHTMLMessage = strings.TrimSpace(msg.HTML.Body.Inner)
		}
	}

	if state := msg.ChatState(); state != "" {
		c.publishChatState(msg, partner, name, state)
	}

	if message == nil {
		log.Debug().Msg("dropping message without content")
		return nil
	}

	timestamp := c.now()
	stamp := msg.Delay
	if stamp == nil && carbon {
		stamp = forwardedDelay
	}
	if stamp == nil {
		stamp = msg.LegacyDelay
	}
	if stamp != nil {
		message.Delay = true
		if t, err := stamp.Time(); err == nil {
			timestamp = t
		} else {
			log.Warn().Err(err).Str("stamp", stamp.Stamp).Msg("unparsable delay stamp")
		}
	}

	c.Bus.Publish(event.Event{Type: event.Message, Data: event.RoomMessageData{
		RoomJID:   roomJID,
		RoomName:  roomName,
		Message:   *message,
		Timestamp: timestamp,
		Carbon:    carbon,
		Stanza:    msg,
	}})
	return nil
}

func (c *Context) publishChatState(msg *stanza.Message, partner, name, state string) {
	roomJID := jidutil.Bare(partner)
	if string(msg.MessageType()) != stanza.TypeGroupchat && c.Rooms.Get(roomJID) != nil {
		roomJID = partner
	}
	if name == "" {
		name = jidutil.UnescapeNode(jidutil.Resource(partner))
		if name == "" {
			name = jidutil.Node(partner)
		}
	}
	c.Bus.Publish(event.Event{Type: event.ChatState, Data: event.ChatStateData{
		Name:    name,
		Type:    string(msg.MessageType()),
		State:   state,
		RoomJID: roomJID,
	}})
}

// senderName resolves a one to one sender: the local nick for our own
// account, then the roster, then the node.
func (c *Context) senderName(from string) string {
	if local := c.User(); local != nil && local.JID() != "" && jidutil.Equal(local.JID(), from) {
		return local.Nick()
	}
	if contact, ok := c.Roster.Get(from); ok {
		return contact.DisplayName()
	}
	return jidutil.Node(from)
}

func (c *Context) occupantName(sender *muc.ChatUser, from string) string {
	if local := c.User(); local != nil && local.JID() != "" && jidutil.Equal(local.JID(), from) {
		return local.Nick()
	}
	if sender != nil {
		return sender.Name(c.Roster)
	}
	return jidutil.UnescapeNode(jidutil.Resource(from))
}
