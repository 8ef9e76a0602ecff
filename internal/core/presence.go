package core

import (
	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

func (c *Context) handlePresence(p *stanza.Presence) error {
	if p.IsMUC() {
		return c.handleRoomPresence(p)
	}
	return c.handleContactPresence(p)
}

// handleContactPresence tracks the resources of roster contacts.
func (c *Context) handleContactPresence(p *stanza.Presence) error {
	from := jidutil.UnescapeJID(p.StanzaFrom())
	if from != "" {
		if _, err := jidutil.Decompose(from); err != nil {
			return err
		}
	}

	changed := false
	switch p.StanzaType() {
	case "":
		show := roster.Show(p.Show)
		if show == "" {
			show = roster.ShowAvailable
		}
		changed = c.Roster.SetPresence(from, roster.Resource{Show: show, Status: p.Status, Priority: p.Priority})
	case stanza.TypeUnavailable:
		changed = c.Roster.RemovePresence(from)
	}
	if changed {
		if contact, ok := c.Roster.Get(from); ok {
			c.Bus.Publish(event.Event{Type: event.RosterUpdated, Data: event.ContactData{Contact: contact}})
		}
	}

	c.Bus.Publish(event.Event{Type: event.Presence, Data: event.PresenceData{From: from, Stanza: p}})
	return nil
}

// handleRoomPresence is the occupant state machine of a room.
func (c *Context) handleRoomPresence(p *stanza.Presence) error {
	from := jidutil.UnescapeJID(p.StanzaFrom())
	parts, err := jidutil.Decompose(from)
	if err != nil {
		return err
	}
	roomJID := parts.Bare()
	log := c.log.With().Str("room", roomJID).Str("from", from).Logger()

	if p.StanzaType() == stanza.TypeError {
		return c.roomPresenceError(p, roomJID)
	}

	isNewRoom := p.HasStatus(stanza.StatusNewRoom)
	nickAssigned := p.HasStatus(stanza.StatusNickAssigned)
	isNickChange := p.HasStatus(stanza.StatusNickChange)

	room := c.Rooms.Create(roomJID)
	item := p.Item()
	nick := jidutil.UnescapeNode(parts.Resource)

	currentUser := room.User()
	if currentUser == nil {
		currentUser = c.User()
	}

	var user *muc.ChatUser
	var action string

	if p.StanzaType() != stanza.TypeUnavailable {
		user = room.Occupants().Get(from)
		if user != nil {
			if item.Role != "" {
				user.SetRole(muc.Role(item.Role))
			}
			if item.Affiliation != "" {
				user.SetAffiliation(muc.Affiliation(item.Affiliation))
			}
		} else {
			user = muc.NewChatUser(from, nick, muc.Affiliation(item.Affiliation), muc.Role(item.Role), item.JID)
			if room.User() == nil {
				local := c.User()
				if nickAssigned || (local != nil && local.Nick() == user.Nick()) {
					room.SetUser(user)
					currentUser = user
				}
			}
			room.Occupants().Add(user)
		}
		user.SetStatus(roster.ShowAvailable)
		if p.Show != "" {
			user.SetStatus(roster.Show(p.Show))
		}
		action = event.ActionJoin
	} else {
		user = room.Occupants().Get(from)
		if user == nil {
			user = muc.NewChatUser(from, nick, muc.Affiliation(item.Affiliation), muc.Role(item.Role), item.JID)
		}
		room.Occupants().Remove(from)
		user.SetStatus(roster.ShowUnavailable)

		if isNickChange && item.Nick != "" {
			user.SetPreviousNick(user.Nick())
			user.SetNick(item.Nick)
			user.SetJID(roomJID + "/" + user.Nick())
			user.SetStatus(roster.ShowAvailable)
			room.Occupants().Add(user)
			action = event.ActionNickChange
		} else {
			action = event.ActionLeave
			if muc.Role(item.Role) == muc.RoleNone {
				switch {
				case p.HasStatus(stanza.StatusKicked):
					action = event.ActionKick
				case p.HasStatus(stanza.StatusBanned):
					action = event.ActionBan
				}
			}

			if currentUser != nil && nick == currentUser.Nick() {
				data := event.SelfLeaveData{
					RoomJID:  roomJID,
					RoomName: room.Name(),
					Type:     action,
					User:     user,
				}
				if action == event.ActionKick || action == event.ActionBan {
					data.Reason = item.Reason
					if item.Actor != nil {
						data.Actor = item.Actor.Nick
						if data.Actor == "" {
							data.Actor = item.Actor.JID
						}
					}
				}
				c.Rooms.Remove(roomJID)
				log.Debug().Str("action", action).Msg("left room")
				c.Bus.Publish(event.Event{Type: event.SelfLeave, Data: data})
				return nil
			}
		}
	}

	ignored := false
	if local := c.User(); local != nil {
		ignored = local.IsIgnored(user.JID())
	}
	log.Debug().Str("action", action).Msg("room presence")
	c.Bus.Publish(event.Event{Type: event.RoomPresence, Data: event.RoomPresenceData{
		RoomJID:     roomJID,
		RoomName:    room.Name(),
		User:        user,
		Action:      action,
		CurrentUser: currentUser,
		IsNewRoom:   isNewRoom,
		Ignored:     ignored,
	}})
	return nil
}

func (c *Context) roomPresenceError(p *stanza.Presence, roomJID string) error {
	name := jidutil.Node(roomJID)
	if room := c.Rooms.Get(roomJID); room != nil {
		name = room.Name()
	}
	c.Rooms.Remove(roomJID)

	kind := ""
	if p.Error != nil {
		kind = p.Error.Condition
	}
	c.log.Debug().Str("room", roomJID).Str("kind", kind).Msg("room presence error")
	c.Bus.Publish(event.Event{Type: event.PresenceError, Data: event.PresenceErrorData{
		RoomJID:  roomJID,
		RoomName: name,
		Kind:     kind,
		Stanza:   p,
	}})
	return nil
}
