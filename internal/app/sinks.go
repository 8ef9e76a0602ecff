package app

import (
	"strconv"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/pkg/plugin"
)

// forwardToPlugins hands every bus event to the plugin host. A plugin
// veto stops the bus for vetoable events.
func (a *App) forwardToPlugins(e event.Event) error {
	if len(a.plugins.List()) == 0 {
		return nil
	}
	if !a.plugins.Deliver(flatten(e)) {
		return event.ErrStop
	}
	return nil
}

// flatten converts a bus event into the plugin wire form.
func flatten(e event.Event) plugin.Event {
	out := plugin.Event{
		Type:     e.Type.String(),
		Vetoable: e.Type.Vetoable(),
		Extra:    map[string]string{},
	}

	switch d := e.Data.(type) {
	case event.ConnectionStatusData:
		out.Action = d.Status
	case event.LoginData:
		out.From = d.PresetJID
	case event.RosterData:
		out.Extra["count"] = strconv.Itoa(len(d.Contacts))
	case event.ContactData:
		out.From = d.Contact.JID
		out.Nick = d.Contact.Name
		out.Extra["subscription"] = string(d.Contact.Subscription)
	case event.RoomPresenceData:
		out.RoomJID = d.RoomJID
		out.RoomName = d.RoomName
		out.Action = d.Action
		addUser(&out, d.User)
		if d.User != nil && d.CurrentUser != nil && d.User.Nick() == d.CurrentUser.Nick() {
			out.Extra["self"] = "true"
		}
		if d.User != nil && d.Action == event.ActionNickChange {
			out.Extra["previous_nick"] = d.User.PreviousNick()
		}
		out.Extra["new_room"] = strconv.FormatBool(d.IsNewRoom)
		out.Extra["ignored"] = strconv.FormatBool(d.Ignored)
	case event.SelfLeaveData:
		out.RoomJID = d.RoomJID
		out.RoomName = d.RoomName
		out.Action = d.Type
		out.Reason = d.Reason
		out.Extra["actor"] = d.Actor
		addUser(&out, d.User)
	case event.PresenceErrorData:
		out.RoomJID = d.RoomJID
		out.RoomName = d.RoomName
		out.Action = d.Kind
	case event.PresenceData:
		out.From = d.From
	case event.RoomMessageData:
		out.RoomJID = d.RoomJID
		out.RoomName = d.RoomName
		out.From = d.Message.From
		out.Nick = d.Message.Name
		out.Body = d.Message.Body
		out.Action = d.Message.Type
		out.Timestamp = d.Timestamp.UTC()
		out.Extra["carbon"] = strconv.FormatBool(d.Carbon)
		out.Extra["delay"] = strconv.FormatBool(d.Message.Delay)
		if d.Message.XHTMLMessage != "" {
			out.Extra["xhtml"] = d.Message.XHTMLMessage
		}
	case event.ChatStateData:
		out.RoomJID = d.RoomJID
		out.Nick = d.Name
		out.Action = d.State
	case event.InviteData:
		out.RoomJID = d.RoomJID
		out.From = d.From
		out.Reason = d.Reason
		if d.ContinuedThread != "" {
			out.Extra["thread"] = d.ContinuedThread
		}
	case event.AdminMessageData:
		out.Action = d.Type
		out.Body = d.Message
	case event.ServerMessageData:
		out.Action = d.Type
		out.Body = d.Message
		out.Extra["subject"] = d.Subject
	case event.StanzaData:
		if d.Stanza != nil {
			out.From = d.Stanza.StanzaFrom()
			out.Body = d.Stanza.Body
		}
	case event.PrivacyData:
		out.Extra["count"] = strconv.Itoa(len(d.List))
	case event.PrivacyErrorData:
		out.Reason = d.Condition
	case event.PrivateChatData:
		out.RoomJID = d.RoomJID
		out.RoomName = d.RoomName
		out.From = d.UserJID
		out.Nick = d.Nick
	}
	return out
}

func addUser(out *plugin.Event, u *muc.ChatUser) {
	if u == nil {
		return
	}
	out.From = u.JID()
	out.Nick = u.Nick()
	out.Extra["role"] = string(u.Role())
	out.Extra["affiliation"] = string(u.Affiliation())
}
